package config

import "slices"

// ConfigDiff describes what changed between two configs. Log level and the
// classifier gate tuning can be applied to a running pipeline; everything
// else (VAD backend, capture device, transport) needs a detector restart,
// which RequiresRestart signals.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ClassifierChanged is true when the gate thresholds, category sets,
	// or fail policy changed.
	ClassifierChanged bool

	// RequiresRestart is true when a change cannot be hot-applied.
	RequiresRestart bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ClassifierChanged || d.RequiresRestart
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if classifierTuningChanged(old.Classifier, new.Classifier) {
		d.ClassifierChanged = true
	}

	// Model or runtime paths mean a new classifier process, not a tuning
	// tweak.
	if old.Classifier.Enabled != new.Classifier.Enabled ||
		old.Classifier.ModelPath != new.Classifier.ModelPath ||
		old.Classifier.ClassMapPath != new.Classifier.ClassMapPath ||
		old.Classifier.LibraryPath != new.Classifier.LibraryPath {
		d.RequiresRestart = true
	}

	if old.Capture != new.Capture ||
		old.VAD != new.VAD ||
		old.Transport != new.Transport ||
		old.Detection != new.Detection ||
		old.Server.ListenAddr != new.Server.ListenAddr {
		d.RequiresRestart = true
	}

	return d
}

// classifierTuningChanged compares only the hot-applicable gate fields.
func classifierTuningChanged(old, new ClassifierConfig) bool {
	return old.SpeechThreshold != new.SpeechThreshold ||
		old.ClassifyThreshold != new.ClassifyThreshold ||
		old.FailClosed != new.FailClosed ||
		!slices.Equal(old.SpeechCategories, new.SpeechCategories) ||
		!slices.Equal(old.IgnoreCategories, new.IgnoreCategories)
}
