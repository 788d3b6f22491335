// Package store persists imported job listings keyed by canonical URL.
// The URL lookup is what lets the API layer skip the whole import pipeline
// on repeated imports of the same posting.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/jobtrackr/jobtrackr/internal/jobposting"
)

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RunMigrations(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Listing is one imported job posting plus its storage identity.
type Listing struct {
	ID                 int       `json:"id"`
	URL                string    `json:"url"`
	CompanyName        string    `json:"company_name"`
	CompanyLogo        string    `json:"company_logo"`
	JobTitle           string    `json:"job_title"`
	LocationCity       string    `json:"location_city"`
	Country            string    `json:"country"`
	NumberOfApplicants int       `json:"number_of_applicants"`
	JobDescription     string    `json:"job_description"`
	CreatedAt          time.Time `json:"created_at"`
}

// GetListing looks up a listing by canonical URL. A miss is (nil, nil), not
// an error.
func (s *Store) GetListing(ctx context.Context, url string) (*Listing, error) {
	var l Listing
	err := s.db.QueryRowContext(ctx, `
SELECT id, url, company_name, company_logo, job_title, location_city, country, number_of_applicants, job_description, created_at
FROM listings
WHERE url = $1
`, url).Scan(
		&l.ID,
		&l.URL,
		&l.CompanyName,
		&l.CompanyLogo,
		&l.JobTitle,
		&l.LocationCity,
		&l.Country,
		&l.NumberOfApplicants,
		&l.JobDescription,
		&l.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveListing upserts the extracted posting under its canonical URL and
// returns the stored row.
func (s *Store) SaveListing(ctx context.Context, url string, p *jobposting.JobPosting) (*Listing, error) {
	l := Listing{
		URL:                url,
		CompanyName:        p.CompanyName,
		CompanyLogo:        p.CompanyLogo,
		JobTitle:           p.JobTitle,
		LocationCity:       p.LocationCity,
		Country:            p.Country,
		NumberOfApplicants: p.NumberOfApplicants,
		JobDescription:     p.JobDescription,
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO listings (url, company_name, company_logo, job_title, location_city, country, number_of_applicants, job_description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (url) DO UPDATE SET
    company_name = EXCLUDED.company_name,
    company_logo = EXCLUDED.company_logo,
    job_title = EXCLUDED.job_title,
    location_city = EXCLUDED.location_city,
    country = EXCLUDED.country,
    number_of_applicants = EXCLUDED.number_of_applicants,
    job_description = EXCLUDED.job_description,
    updated_at = NOW()
RETURNING id, created_at
`, l.URL, l.CompanyName, l.CompanyLogo, l.JobTitle, l.LocationCity, l.Country, l.NumberOfApplicants, l.JobDescription).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) ListListings(ctx context.Context, limit, offset int) ([]Listing, int, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, url, company_name, company_logo, job_title, location_city, country, number_of_applicants, job_description, created_at
FROM listings
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(
			&l.ID,
			&l.URL,
			&l.CompanyName,
			&l.CompanyLogo,
			&l.JobTitle,
			&l.LocationCity,
			&l.Country,
			&l.NumberOfApplicants,
			&l.JobDescription,
			&l.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		listings = append(listings, l)
	}
	return listings, total, rows.Err()
}

func (s *Store) DeleteListing(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	return err
}

func clampLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
