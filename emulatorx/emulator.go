package emulatorx

const (
	TypePubSub    = "pubsub"
	TypeFirestore = "firestore"
	TypeStorage   = "storage"
)

// Emulator is a registered emulator of a given type.
type Emulator struct {
	Type      string `json:"type"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	ProjectID string `json:"project_id"`
	TLS       bool   `json:"tls"`
}

// ConnectionConfig returns the coordinates of the emulator.
func (e Emulator) ConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Host:      e.Host,
		Port:      e.Port,
		ProjectID: e.ProjectID,
		TLS:       e.TLS,
	}
}
