// Package password derives token-sealing keys from a user passphrase with Argon2id.
//
// # Output format
//
// The parameters a key was derived with are encoded next to the sealed value:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>,l=<keylen>$<salt>
//
// [KDF.NeedsUpgrade] reports when stored parameters are weaker than the current
// ones, so the caller can seal the value again on its next read.
//
// # What this package must NOT do
//
//   - Store or read files. The credential package owns the sealed layout.
//   - Import any other keynotify package.
//   - Log passphrases or derived keys.
package password
