// Package docstore persists the venue as a single JSON document fetched and replaced
// wholesale, and exposes typed views over its top-level keys.
package docstore

import (
	"context"
	"encoding/json"
)

// Top-level keys of the venue document.
const (
	KeyTables    = "tables"
	KeyOrders    = "orders"
	KeyRevenue   = "revenue"
	KeyUsers     = "users"
	KeyEmployees = "employees"
	KeyMenu      = "menu"
	KeyCustomers = "customers"
)

// Document maps each top-level key to its raw JSON value. Keys this service does not model
// are carried through writes untouched.
type Document map[string]json.RawMessage

// Clone returns a copy whose values do not alias d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Backend fetches and replaces the whole venue document. Replace is not safely retryable:
// it carries no version, so a blind retry can overwrite a concurrent writer.
type Backend interface {
	Fetch(ctx context.Context) (Document, error)
	Replace(ctx context.Context, doc Document) error
}

// Pinger is implemented by backends able to probe connectivity without reading the document.
type Pinger interface {
	Ping(ctx context.Context) error
}
