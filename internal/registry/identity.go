package registry

import "github.com/google/uuid"

// idNamespace salts identifier generation so triggerd ids don't collide
// with other SHA-1 UUID schemes. Changing it would orphan every cached
// entity, so it is fixed forever.
var idNamespace = uuid.MustParse("c9c5a1da-7b6e-4a61-9f8e-2f2f6f3f1a42")

// Identifier derives the stable entity identifier for a trigger name.
// Same name, same identifier, across processes and restarts.
func Identifier(name string) string {
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
