package fiscal

import "github.com/xraph/fiscal/id"

// ID is the primary identifier type for all fiscal entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
