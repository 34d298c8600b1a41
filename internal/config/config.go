package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ENV_PREFIX prefixes every key accepted by LoadEnvFile
const ENV_PREFIX = "ANTITHEFT_"

// Config represents the node configuration shared by TX and RX
type Config struct {
	filename string

	// Link section
	localAddress string
	localPort    uint32
	peerAddress  string
	peerPort     uint32

	// Timing section (milliseconds)
	pollInterval      uint32
	buttonDebounce    uint32
	connectTimeout    uint32
	linkBlink         uint32
	signalPhase       uint32
	armStabilize      uint32
	vibrationDebounce uint32
	alarmDuration     uint32

	// Signal section (pulse counts)
	armBlinks       uint32
	disarmBlinks    uint32
	locateBlinks    uint32
	vibrationBlinks uint32
	powerOnBeeps    uint32
	feedbackBlinks  uint32

	// Database section
	databaseEnabled bool
	databasePath    string
	databaseJournal bool

	// MQTT section
	mqttEnabled  bool
	mqttBroker   string
	mqttPort     uint32
	mqttClientID string
	mqttTopic    string
	mqttUsername string
	mqttPassword string
	mqttQoS      uint8

	// Log section
	logDebug bool
}

// NewConfig creates a new configuration instance with the stock board timings
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,

		localPort: 47800,
		peerPort:  47801,

		pollInterval:      10,
		buttonDebounce:    50,
		connectTimeout:    3000,
		linkBlink:         500,
		signalPhase:       150,
		armStabilize:      1500,
		vibrationDebounce: 800,
		alarmDuration:     3000,

		armBlinks:       1,
		disarmBlinks:    2,
		locateBlinks:    5,
		vibrationBlinks: 10,
		powerOnBeeps:    2,
		feedbackBlinks:  3,

		databaseEnabled: false,
		databasePath:    "data/antitheft.db",
		databaseJournal: true,

		mqttEnabled:  false,
		mqttPort:     1883,
		mqttClientID: "antitheft-rx",
		mqttTopic:    "antitheft/rx",
		mqttQoS:      1,
	}
}

// Load loads configuration from the specified file
func (c *Config) Load() error {
	file, err := os.Open(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %v", c.filename, err)
	}
	defer file.Close()

	return c.parseINIScanner(bufio.NewScanner(file))
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	return c.parseINIScanner(bufio.NewScanner(strings.NewReader(data)))
}

// LoadEnvFile overlays values from a dotenv file. Keys are the INI keys in
// upper snake case with ENV_PREFIX, e.g. ANTITHEFT_MQTT_PASSWORD. A missing
// file is not an error.
func (c *Config) LoadEnvFile(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	c.applyEnv(values)
	return nil
}

// envKeys maps dotenv keys (without prefix) to INI section and key
var envKeys = map[string][2]string{
	"LOCAL_ADDRESS":      {"Link", "LocalAddress"},
	"LOCAL_PORT":         {"Link", "LocalPort"},
	"PEER_ADDRESS":       {"Link", "PeerAddress"},
	"PEER_PORT":          {"Link", "PeerPort"},
	"DATABASE_ENABLED":   {"Database", "Enabled"},
	"DATABASE_PATH":      {"Database", "Path"},
	"MQTT_ENABLED":       {"MQTT", "Enabled"},
	"MQTT_BROKER":        {"MQTT", "Broker"},
	"MQTT_PORT":          {"MQTT", "Port"},
	"MQTT_CLIENT_ID":     {"MQTT", "ClientID"},
	"MQTT_TOPIC":         {"MQTT", "Topic"},
	"MQTT_USERNAME":      {"MQTT", "Username"},
	"MQTT_PASSWORD":      {"MQTT", "Password"},
	"LOG_DEBUG":          {"Log", "Debug"},
	"ARM_STABILIZE":      {"Timing", "ArmStabilize"},
	"VIBRATION_DEBOUNCE": {"Timing", "VibrationDebounce"},
	"ALARM_DURATION":     {"Timing", "AlarmDuration"},
}

func (c *Config) applyEnv(values map[string]string) {
	for name, value := range values {
		target, ok := envKeys[strings.TrimPrefix(name, ENV_PREFIX)]
		if !ok || !strings.HasPrefix(name, ENV_PREFIX) {
			continue
		}
		c.parseKey(target[0], target[1], strings.TrimSpace(value))
	}
}

func (c *Config) parseINIScanner(scanner *bufio.Scanner) error {
	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' && line[len(line)-1] == ']' {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		c.parseKey(currentSection, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}

	return scanner.Err()
}

func (c *Config) parseKey(section, key, value string) {
	switch section {
	case "Link":
		c.parseLinkSection(key, value)
	case "Timing":
		c.parseTimingSection(key, value)
	case "Signal":
		c.parseSignalSection(key, value)
	case "Database":
		c.parseDatabaseSection(key, value)
	case "MQTT":
		c.parseMQTTSection(key, value)
	case "Log":
		c.parseLogSection(key, value)
	}
}

func (c *Config) parseLinkSection(key, value string) {
	switch key {
	case "LocalAddress":
		c.localAddress = value
	case "LocalPort":
		c.parseUint32(value, &c.localPort)
	case "PeerAddress":
		c.peerAddress = value
	case "PeerPort":
		c.parseUint32(value, &c.peerPort)
	}
}

func (c *Config) parseTimingSection(key, value string) {
	switch key {
	case "PollInterval":
		c.parseUint32(value, &c.pollInterval)
	case "ButtonDebounce":
		c.parseUint32(value, &c.buttonDebounce)
	case "ConnectTimeout":
		c.parseUint32(value, &c.connectTimeout)
	case "LinkBlink":
		c.parseUint32(value, &c.linkBlink)
	case "SignalPhase":
		c.parseUint32(value, &c.signalPhase)
	case "ArmStabilize":
		c.parseUint32(value, &c.armStabilize)
	case "VibrationDebounce":
		c.parseUint32(value, &c.vibrationDebounce)
	case "AlarmDuration":
		c.parseUint32(value, &c.alarmDuration)
	}
}

func (c *Config) parseSignalSection(key, value string) {
	switch key {
	case "ArmBlinks":
		c.parseUint32(value, &c.armBlinks)
	case "DisarmBlinks":
		c.parseUint32(value, &c.disarmBlinks)
	case "LocateBlinks":
		c.parseUint32(value, &c.locateBlinks)
	case "VibrationBlinks":
		c.parseUint32(value, &c.vibrationBlinks)
	case "PowerOnBeeps":
		c.parseUint32(value, &c.powerOnBeeps)
	case "FeedbackBlinks":
		c.parseUint32(value, &c.feedbackBlinks)
	}
}

func (c *Config) parseDatabaseSection(key, value string) {
	switch key {
	case "Enabled":
		c.databaseEnabled = c.parseBool(value)
	case "Path":
		c.databasePath = value
	case "Journal":
		c.databaseJournal = c.parseBool(value)
	}
}

func (c *Config) parseMQTTSection(key, value string) {
	switch key {
	case "Enabled":
		c.mqttEnabled = c.parseBool(value)
	case "Broker":
		c.mqttBroker = value
	case "Port":
		c.parseUint32(value, &c.mqttPort)
	case "ClientID":
		c.mqttClientID = value
	case "Topic":
		c.mqttTopic = strings.TrimSuffix(value, "/")
	case "Username":
		c.mqttUsername = value
	case "Password":
		c.mqttPassword = value
	case "QoS":
		if v, err := strconv.ParseUint(value, 10, 8); err == nil && v <= 2 {
			c.mqttQoS = uint8(v)
		}
	}
}

func (c *Config) parseLogSection(key, value string) {
	switch key {
	case "Debug":
		c.logDebug = c.parseBool(value)
	}
}

func (c *Config) parseUint32(value string, dst *uint32) {
	if v, err := strconv.ParseUint(value, 10, 32); err == nil {
		*dst = uint32(v)
	}
}

func (c *Config) parseBool(value string) bool {
	return value == "1" || strings.ToLower(value) == "true" || strings.ToLower(value) == "yes"
}

func ms(v uint32) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Getter methods for Link section
func (c *Config) GetLocalAddress() string { return c.localAddress }
func (c *Config) GetLocalPort() uint32    { return c.localPort }
func (c *Config) GetPeerAddress() string  { return c.peerAddress }
func (c *Config) GetPeerPort() uint32     { return c.peerPort }

// Getter methods for Timing section
func (c *Config) GetPollInterval() time.Duration      { return ms(c.pollInterval) }
func (c *Config) GetButtonDebounce() time.Duration    { return ms(c.buttonDebounce) }
func (c *Config) GetConnectTimeout() time.Duration    { return ms(c.connectTimeout) }
func (c *Config) GetLinkBlink() time.Duration         { return ms(c.linkBlink) }
func (c *Config) GetSignalPhase() time.Duration       { return ms(c.signalPhase) }
func (c *Config) GetArmStabilize() time.Duration      { return ms(c.armStabilize) }
func (c *Config) GetVibrationDebounce() time.Duration { return ms(c.vibrationDebounce) }
func (c *Config) GetAlarmDuration() time.Duration     { return ms(c.alarmDuration) }

// Getter methods for Signal section
func (c *Config) GetArmBlinks() int       { return int(c.armBlinks) }
func (c *Config) GetDisarmBlinks() int    { return int(c.disarmBlinks) }
func (c *Config) GetLocateBlinks() int    { return int(c.locateBlinks) }
func (c *Config) GetVibrationBlinks() int { return int(c.vibrationBlinks) }
func (c *Config) GetPowerOnBeeps() int    { return int(c.powerOnBeeps) }
func (c *Config) GetFeedbackBlinks() int  { return int(c.feedbackBlinks) }

// Getter methods for Database section
func (c *Config) GetDatabaseEnabled() bool { return c.databaseEnabled }
func (c *Config) GetDatabasePath() string  { return c.databasePath }
func (c *Config) GetDatabaseJournal() bool { return c.databaseJournal }

// Getter methods for MQTT section
func (c *Config) GetMQTTEnabled() bool    { return c.mqttEnabled }
func (c *Config) GetMQTTBroker() string   { return c.mqttBroker }
func (c *Config) GetMQTTPort() uint32     { return c.mqttPort }
func (c *Config) GetMQTTClientID() string { return c.mqttClientID }
func (c *Config) GetMQTTTopic() string    { return c.mqttTopic }
func (c *Config) GetMQTTUsername() string { return c.mqttUsername }
func (c *Config) GetMQTTPassword() string { return c.mqttPassword }
func (c *Config) GetMQTTQoS() uint8       { return c.mqttQoS }

// Getter methods for Log section
func (c *Config) GetLogDebug() bool { return c.logDebug }
