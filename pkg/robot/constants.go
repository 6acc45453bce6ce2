package robot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultConstantsFile = "constants.yaml"

// Constants are the tuning values of the robot: speeds, thresholds and
// durations. They are loaded once before any binding is evaluated and passed
// by pointer to everything that needs them.
type Constants struct {
	LoopHz int `yaml:"loop_hz" validate:"gte=10,lte=500"`

	ShooterSpeed        float64       `yaml:"shooter_speed" validate:"gte=-1,lte=1"`
	ShooterReverseSpeed float64       `yaml:"shooter_reverse_speed" validate:"gte=-1,lte=1"`
	ShooterSpinUp       time.Duration `yaml:"shooter_spin_up" validate:"gte=0"`

	GateSpeed     float64 `yaml:"gate_speed" validate:"gte=-1,lte=1"`
	GateLoadSpeed float64 `yaml:"gate_load_speed" validate:"gte=-1,lte=1"`
	IndexerSpeed  float64 `yaml:"indexer_speed" validate:"gte=-1,lte=1"`
	IndexerDir    int     `yaml:"indexer_dir" validate:"oneof=-1 1"`
	IntakeSpeed   float64 `yaml:"intake_speed" validate:"gte=-1,lte=1"`
	IntakeDir     int     `yaml:"intake_dir" validate:"oneof=-1 1"`

	WinchDeploySpeed   float64       `yaml:"winch_deploy_speed" validate:"gte=-1,lte=1"`
	WinchDeployTime    time.Duration `yaml:"winch_deploy_time" validate:"gt=0"`
	WinchDir           int           `yaml:"winch_dir" validate:"oneof=-1 1"`
	WinchTriggerThresh float64       `yaml:"winch_trigger_thresh" validate:"gte=0,lte=1"`

	Deadband float64 `yaml:"deadband" validate:"gte=0,lt=1"`

	AutoShootTime  time.Duration `yaml:"auto_shoot_time" validate:"gt=0"`
	AutoBackupTime time.Duration `yaml:"auto_backup_time" validate:"gt=0"`

	VisionSpeed     float64       `yaml:"vision_speed" validate:"gte=-1,lte=1"`
	VisionKP        float64       `yaml:"vision_kp" validate:"gte=0"`
	VisionTolerance float64       `yaml:"vision_tolerance" validate:"gt=0"`
	VisionSign      int           `yaml:"vision_sign" validate:"oneof=-1 1"`
	VisionTimeout   time.Duration `yaml:"vision_timeout" validate:"gt=0"`

	TurnKP        float64       `yaml:"turn_kp" validate:"gt=0"`
	TurnMaxSpeed  float64       `yaml:"turn_max_speed" validate:"gt=0,lte=1"`
	TurnMinSpeed  float64       `yaml:"turn_min_speed" validate:"gte=0,lte=1"`
	TurnTolerance float64       `yaml:"turn_tolerance" validate:"gt=0"`
	TurnTimeout   time.Duration `yaml:"turn_timeout" validate:"gt=0"`

	EndgameWindow  time.Duration `yaml:"endgame_window" validate:"gte=0"`
	AutoDuration   time.Duration `yaml:"auto_duration" validate:"gt=0"`
	TeleopDuration time.Duration `yaml:"teleop_duration" validate:"gt=0"`
}

// DefaultConstants returns the values the robot ships with.
func DefaultConstants() *Constants {
	return &Constants{
		LoopHz: 50,

		ShooterSpeed:        0.9,
		ShooterReverseSpeed: -0.3,
		ShooterSpinUp:       time.Second,

		GateSpeed:     0.6,
		GateLoadSpeed: 0.4,
		IndexerSpeed:  0.5,
		IndexerDir:    1,
		IntakeSpeed:   0.7,
		IntakeDir:     1,

		WinchDeploySpeed:   0.5,
		WinchDeployTime:    5 * time.Second,
		WinchDir:           1,
		WinchTriggerThresh: 0.2,

		Deadband: 0.08,

		AutoShootTime:  4 * time.Second,
		AutoBackupTime: time.Second,

		VisionSpeed:     0.3,
		VisionKP:        0.03,
		VisionTolerance: 1.5,
		VisionSign:      1,
		VisionTimeout:   3 * time.Second,

		TurnKP:        0.02,
		TurnMaxSpeed:  0.6,
		TurnMinSpeed:  0.15,
		TurnTolerance: 3,
		TurnTimeout:   3 * time.Second,

		EndgameWindow:  30 * time.Second,
		AutoDuration:   15 * time.Second,
		TeleopDuration: 135 * time.Second,
	}
}

// LoadConstants reads YAML overrides on top of DefaultConstants. A missing
// file yields the defaults.
func LoadConstants(path string) (*Constants, error) {
	k := DefaultConstants()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return k, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read constants: %w", err)
	}
	if err := yaml.Unmarshal(data, k); err != nil {
		return nil, fmt.Errorf("parse constants %s: %w", path, err)
	}
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("constants %s: %w", path, err)
	}
	return k, nil
}

// Validate checks every field against its range.
func (k *Constants) Validate() error {
	return validator.New().Struct(k)
}

// Period is the control cycle length.
func (k *Constants) Period() time.Duration {
	return time.Second / time.Duration(k.LoopHz)
}
