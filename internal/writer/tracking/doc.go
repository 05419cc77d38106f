// Package tracking writes a project into the production tracking database.
//
// Entities are looked up by code before they are created. A write runs in a
// single transaction, so a conflict under the fail policy leaves the database
// untouched. Notes, published files and versions come from an optional
// review file passed as the review argument.
package tracking
