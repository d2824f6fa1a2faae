package store

const (
	upsertProducts = `INSERT INTO products (
			codename, full_name, email, twitter_handle, product_website, punchline,
			description, logo_src, categories, tags, labels, approved, featured, user_id
		) VALUES (
			:codename, :full_name, :email, :twitter_handle, :product_website, :punchline,
			:description, :logo_src, :categories, :tags, :labels, :approved, :featured, :user_id
		)
		ON CONFLICT (codename) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			product_website = EXCLUDED.product_website,
			punchline = EXCLUDED.punchline,
			description = EXCLUDED.description,
			logo_src = EXCLUDED.logo_src,
			categories = EXCLUDED.categories,
			tags = EXCLUDED.tags,
			labels = EXCLUDED.labels`

	getProductByCodename = `SELECT id, codename, full_name, email, twitter_handle, product_website,
			punchline, description, logo_src, categories, tags, labels, view_count,
			approved, featured, user_id, created_at
		FROM products WHERE codename = $1`
)

// Entity tables share one shape, so their statements are built per table.
// Table names come from models.EntityKind, never from input.
func getEntityByName(table string) string {
	return `SELECT id, name FROM ` + table + ` WHERE name = $1`
}

func insertEntity(table string) string {
	return `INSERT INTO ` + table + ` (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`
}
