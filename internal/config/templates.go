package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		return hostTemplate, nil
	case "embedded":
		return embeddedTemplate, nil
	case "whitelist":
		return whitelistSourceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hostTemplate = `name = "framehost"
addr = ":9000"
origin = "http://localhost:9000"
cors_origins = ["http://localhost:3000"]
channel_path = "/framelink/channel"
receiver_path = "/framelink/receiver"

# Plain origins are hashed at load; whitelist holds precomputed hashes
# written by whitelistgen.
origins = ["http://localhost:3000"]
whitelist = []
open_origins = false

# cert_file = "local/tls/host.crt"
# key_file = "local/tls/host.key"
`

const embeddedTemplate = `origin = "http://localhost:3000"
host_url = "ws://localhost:9000/framelink/channel"
origins = ["http://localhost:9000"]

[legacy]
candidates = ["http://localhost:9000"]
receiver_path = "/framelink/receiver"

[handshake]
interval_ms = 100
max_attempts = 20
multiplier = 1.0
max_delay_ms = 0
`

const whitelistSourceTemplate = `origins:
  - http://localhost:3000
  - http://localhost:9000
legacy:
  candidates:
    - http://localhost:9000
  receiver_path: /framelink/receiver
`
