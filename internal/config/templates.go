package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "daemon":
		return daemonTemplate, nil
	case "client":
		return clientTemplate, nil
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

const daemonTemplate = `[token]
name = "Vara Token"
symbol = "VARA"
decimals = 12

[[token.genesis]]
to = "0x1111111111111111111111111111111111111111111111111111111111111111"
amount = "1000000000000000"

[server]
listen = "127.0.0.1:7020"
idle_timeout = "5m"
write_timeout = "15s"
max_payload_bytes = 65536

[gateway]
enabled = true
listen = "127.0.0.1:7021"

[log]
level = "info"
`

const clientTemplate = `addr = "127.0.0.1:7020"
caller = "0x1111111111111111111111111111111111111111111111111111111111111111"
timeout = "10s"
connect_timeout = "5s"
max_connect_attempts = 3
`
