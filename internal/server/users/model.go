package users

// UserRecord is one entry in the flat user-record file. Records are created
// at registration and never mutated or deleted afterwards.
//
// PasswordHash is the hex SHA-256 of the client-supplied hash concatenated
// with ServerSalt, so the server never holds anything that would let it
// reconstruct the client's own hash, let alone the password. ClientSalt is
// opaque to the server and only echoed back at login so the client can
// re-derive its local key.
type UserRecord struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	ClientSalt   string `json:"client_salt"`
	ServerSalt   string `json:"server_salt"`
	CreatedAt    string `json:"created_at"`
}
