// Package keys manages the Ed25519 seeds used by service owners and users.
//
// Every identity is a 32-byte seed. The same seed yields an Ed25519 signing
// key, whose public half is published as an issuer key string
// ("ed25519:" + base64), and an X25519 box key that feedback is sealed to.
//
// The KeyStore is a plain directory layout:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
//
// Role seeds are derived from the root seed and can always be recreated.
package keys
