// Package password implements Argon2id hashing and an in-memory credential directory
// for login endpoints that sit in front of gatekeep.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the caller
// can re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Issue tokens or sessions (the login endpoint calls gatekeep.Engine.Login).
//   - Import any other gatekeep package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
