// Package frontier defines the URL frontier shared by every store implementation:
// the ordered status lifecycle, the per-field merge policy applied to crawler
// reports, lease eligibility, and the Store contract consumed by the HTTP layer,
// the ingestion pipeline and the background loop.
//
// Implementations live in internal/storage/postgres and internal/storage/memory;
// this package must not import database drivers.
package frontier
