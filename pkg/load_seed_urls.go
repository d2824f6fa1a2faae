package pkg

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

var urlColumns = []string{"url", "website", "domain"}

// LoadSeedURLs reads hand-picked URLs from a CSV file with a header row.
// The first column named url, website or Domain (any case) is used.
func LoadSeedURLs(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %w", err)
	}
	defer file.Close()
	return ReadSeedURLs(file)
}

func ReadSeedURLs(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("seed file is empty")
	}
	var urlIDX = -1
	header := records[0]
	for _, want := range urlColumns {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), want) {
				urlIDX = i
				break
			}
		}
		if urlIDX != -1 {
			break
		}
	}
	if urlIDX == -1 {
		return nil, fmt.Errorf("failed to find the url col in seed file")
	}
	var urls []string
	for _, row := range records[1:] {
		if len(row) > urlIDX {
			if u := strings.TrimSpace(row[urlIDX]); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls, nil
}
