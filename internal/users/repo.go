package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, u *User) error {
	if err := u.ValidateNew(); err != nil {
		return err
	}

	const q = `
insert into users (id, email, role, first_name, last_name, company_name, street_address, city, postal_code)
values ($1, $2, $3, $4, $5, $6, nullif($7,''), nullif($8,''), nullif($9,''))
returning created_at, updated_at;
`
	err := r.db.QueryRow(ctx, q,
		u.ID, u.Email, string(u.Role), u.FirstName, u.LastName, u.CompanyName,
		u.StreetAddress, u.City, u.PostalCode,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	const q = `
select id, email, role, first_name, last_name, company_name,
       coalesce(street_address,''), coalesce(city,''), coalesce(postal_code,''),
       created_at, updated_at
from users
where id = $1;
`
	var u User
	var role string
	err := r.db.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Email, &role, &u.FirstName, &u.LastName, &u.CompanyName,
		&u.StreetAddress, &u.City, &u.PostalCode, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

// UpdateContact replaces the contact fields only. Role and email stay as they
// are; role changes go through an admin, not through this path.
func (r *Repo) UpdateContact(ctx context.Context, id string, street, city, postal string) (*User, error) {
	const q = `
update users
set street_address = nullif($2,''), city = nullif($3,''), postal_code = nullif($4,''), updated_at = now()
where id = $1;
`
	ct, err := r.db.Exec(ctx, q, id, street, city, postal)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Repo) List(ctx context.Context) ([]User, error) {
	const q = `
select id, email, role, first_name, last_name, company_name,
       coalesce(street_address,''), coalesce(city,''), coalesce(postal_code,''),
       created_at, updated_at
from users
order by created_at desc;
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, 32)
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(
			&u.ID, &u.Email, &role, &u.FirstName, &u.LastName, &u.CompanyName,
			&u.StreetAddress, &u.City, &u.PostalCode, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}
