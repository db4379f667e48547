// Package cli implements the tentech operator command line.
//
// Each invocation runs one subcommand against the gRPC API or, for
// migrate, directly against PostgreSQL:
//
//	register     create an account (password read without echo)
//	activate     redeem an activation token
//	resend       mail a fresh activation token
//	login        print an access/refresh token pair
//	add-product  log in and create a product interactively
//	migrate      apply the embedded schema migrations
package cli
