// Package authflow ties the two biometric factors to the door.
//
// The Engine polls the face recognition pipeline while idle. A face
// match on an active user opens a session; the user then has the
// session window to present a fingerprint. The door opens only when
// the fingerprint resolves to the same active identity the face
// matched. Every terminal outcome is recorded as an access event.
//
// The Enroller handles the write side: binding face embeddings and
// sensor template slots to users, and cleaning both up on removal.
package authflow
