package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations so operators can write "30s" instead of
// nanosecond integers.
type StructuredJSONConfig struct {
	Broker struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		PingInterval   Duration `json:"ping_interval"`
		PongTimeout    Duration `json:"pong_timeout"`
		DeltaThreshold int      `json:"delta_threshold"`
	} `json:"broker,omitempty"`

	Sessions struct {
		Lifetime      Duration `json:"lifetime"`
		SweepInterval Duration `json:"sweep_interval"`
		MaxDevices    int      `json:"max_devices"`
		MaxEditors    int      `json:"max_editors"`
	} `json:"sessions,omitempty"`

	Auth struct {
		TokenSignKey string `json:"token_sign_key"`
		TokenIssuer  string `json:"token_issuer"`
	} `json:"auth,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Broker: Broker{
			HTTPAddress:    jsonCfg.Broker.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Broker.RequestTimeout),
			PingInterval:   time.Duration(jsonCfg.Broker.PingInterval),
			PongTimeout:    time.Duration(jsonCfg.Broker.PongTimeout),
			DeltaThreshold: jsonCfg.Broker.DeltaThreshold,
		},
		Sessions: Sessions{
			Lifetime:      time.Duration(jsonCfg.Sessions.Lifetime),
			SweepInterval: time.Duration(jsonCfg.Sessions.SweepInterval),
			MaxDevices:    jsonCfg.Sessions.MaxDevices,
			MaxEditors:    jsonCfg.Sessions.MaxEditors,
		},
		Auth: Auth{
			TokenSignKey: jsonCfg.Auth.TokenSignKey,
			TokenIssuer:  jsonCfg.Auth.TokenIssuer,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s" as well as raw nanosecond numbers.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("error parsing duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return errors.New("invalid duration")
	}
}
