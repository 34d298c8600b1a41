package node

import (
	"github.com/dbehnke/antitheft/internal/alarm"
	"github.com/dbehnke/antitheft/internal/config"
	"github.com/dbehnke/antitheft/internal/telemetry"
)

// AlarmOptions builds the state machine options from cfg
func AlarmOptions(cfg *config.Config) alarm.Options {
	return alarm.Options{
		Patterns: alarm.Patterns{
			Arm:       cfg.GetArmBlinks(),
			Disarm:    cfg.GetDisarmBlinks(),
			Locate:    cfg.GetLocateBlinks(),
			Vibration: cfg.GetVibrationBlinks(),
		},
		Timing: alarm.Timing{
			ArmStabilize:      cfg.GetArmStabilize(),
			VibrationDebounce: cfg.GetVibrationDebounce(),
			AlarmDuration:     cfg.GetAlarmDuration(),
		},
		Debug: cfg.GetLogDebug(),
	}
}

// ApplyReceiverConfig copies timings and pattern counts from cfg. Lines,
// link, store and reporter are left to the caller.
func ApplyReceiverConfig(rc *ReceiverConfig, cfg *config.Config) {
	rc.Options = AlarmOptions(cfg)
	rc.SignalPhase = cfg.GetSignalPhase()
	rc.ConnectTimeout = cfg.GetConnectTimeout()
	rc.LinkBlink = cfg.GetLinkBlink()
	rc.PowerOnBeeps = cfg.GetPowerOnBeeps()
	rc.PollInterval = cfg.GetPollInterval()
	rc.Debug = cfg.GetLogDebug()
}

// ApplyTransmitterConfig copies timings from cfg
func ApplyTransmitterConfig(tc *TransmitterConfig, cfg *config.Config) {
	tc.ButtonDebounce = cfg.GetButtonDebounce()
	tc.SignalPhase = cfg.GetSignalPhase()
	tc.FeedbackBlinks = cfg.GetFeedbackBlinks()
	tc.PollInterval = cfg.GetPollInterval()
	tc.Debug = cfg.GetLogDebug()
}

// MQTTConfig builds the telemetry publisher settings from cfg
func MQTTConfig(cfg *config.Config) telemetry.MQTTConfig {
	return telemetry.MQTTConfig{
		Broker:   cfg.GetMQTTBroker(),
		Port:     cfg.GetMQTTPort(),
		ClientID: cfg.GetMQTTClientID(),
		Topic:    cfg.GetMQTTTopic(),
		Username: cfg.GetMQTTUsername(),
		Password: cfg.GetMQTTPassword(),
		QoS:      cfg.GetMQTTQoS(),
	}
}
