package models

import "time"

type Product struct {
	ID             int64     `json:"id" db:"id"`
	Codename       string    `json:"codename" db:"codename"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	TwitterHandle  string    `json:"twitter_handle" db:"twitter_handle"`
	ProductWebsite string    `json:"product_website" db:"product_website"`
	Punchline      string    `json:"punchline" db:"punchline"`
	Description    string    `json:"description" db:"description"`
	LogoSrc        string    `json:"logo_src" db:"logo_src"`
	Categories     string    `json:"categories" db:"categories"`
	Tags           []string  `json:"tags" db:"-"`
	Labels         []string  `json:"labels" db:"-"`
	ViewCount      int64     `json:"view_count" db:"view_count"`
	Approved       bool      `json:"approved" db:"approved"`
	Featured       bool      `json:"featured" db:"featured"`
	UserID         *string   `json:"user_id" db:"user_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type EntityKind string

const (
	EntityCategory EntityKind = "categories"
	EntityLabel    EntityKind = "labels"
	EntityTag      EntityKind = "tags"
)

type Entity struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
