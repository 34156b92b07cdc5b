package config

// ServiceAccount holds the fields of a Google service account key needed to sign storage URLs.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}
