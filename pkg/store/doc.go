// Package store is the PostgreSQL persistence layer. It serves two
// consumers: the permission resolvers (ownership, membership roles, role
// grants, direct grants) and the guard layer (resource lookups, usage
// counts, invitation redemption). Schema changes live in migrations.go as
// versioned statements tracked in authz_migrations.
package store
