package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a broker address in format [host]:[port]
//	-c/-config json file path with configs
//	-request-timeout control request timeout (e.g., "30s")
//	-ping-interval heartbeat ping interval (e.g., "30s")
//	-pong-timeout silence window before a connection is closed (e.g., "60s")
//	-delta-threshold changed-node count forcing a full update
//	-session-lifetime fixed session lifetime (e.g., "8h")
//	-sweep-interval expiry sweep interval (e.g., "5m")
//	-max-devices device-role connection cap per session
//	-max-editors editor-role connection cap per session
//	-token-sign-key session token signing key
//	-token-issuer session token issuer name
func ParseFlags() *StructuredConfig {
	var brokerAddress NetAddress
	var jsonConfigPath string
	var requestTimeout time.Duration
	var pingInterval time.Duration
	var pongTimeout time.Duration
	var deltaThreshold int
	var sessionLifetime time.Duration
	var sweepInterval time.Duration
	var maxDevices int
	var maxEditors int
	var tokenSignKey string
	var tokenIssuer string

	flag.Var(&brokerAddress, "a", "Net address host:port")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.DurationVar(&pingInterval, "ping-interval", 0, "Heartbeat ping interval (e.g., 30s)")
	flag.DurationVar(&pongTimeout, "pong-timeout", 0, "Heartbeat silence timeout (e.g., 60s)")
	flag.IntVar(&deltaThreshold, "delta-threshold", 0, "Changed-node count forcing a full update")
	flag.DurationVar(&sessionLifetime, "session-lifetime", 0, "Session lifetime (e.g., 8h)")
	flag.DurationVar(&sweepInterval, "sweep-interval", 0, "Expiry sweep interval (e.g., 5m)")
	flag.IntVar(&maxDevices, "max-devices", 0, "Device connection cap per session")
	flag.IntVar(&maxEditors, "max-editors", 0, "Editor connection cap per session")
	flag.StringVar(&tokenSignKey, "token-sign-key", "", "Session token signing key")
	flag.StringVar(&tokenIssuer, "token-issuer", "", "Session token issuer")

	flag.Parse()

	return &StructuredConfig{
		Broker: Broker{
			HTTPAddress:    brokerAddress.String(),
			RequestTimeout: requestTimeout,
			PingInterval:   pingInterval,
			PongTimeout:    pongTimeout,
			DeltaThreshold: deltaThreshold,
		},
		Sessions: Sessions{
			Lifetime:      sessionLifetime,
			SweepInterval: sweepInterval,
			MaxDevices:    maxDevices,
			MaxEditors:    maxEditors,
		},
		Auth: Auth{
			TokenSignKey: tokenSignKey,
			TokenIssuer:  tokenIssuer,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns the empty string so that the
// merge step treats the flag as "not provided".
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" && host != "" {
		ip := net.ParseIP(host)
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
