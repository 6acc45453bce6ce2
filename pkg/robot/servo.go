package robot

import (
	"context"
	"fmt"
	"sync"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// ServoBus drives every motor channel over one feetech serial bus, with the
// servos in wheel mode. Speed commands set during a cycle are buffered and
// written as goal velocities with a single sync write on Flush.
type ServoBus struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration

	mu      sync.Mutex
	pending map[MotorName]float64
}

// OpenServoBus opens the bus described by cfg.
func OpenServoBus(cfg *Config) (*ServoBus, error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = 1_000_000
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	// Create servo group from calibration IDs
	group := feetech.NewServoGroupByIDs(bus, cfg.Calibration.MotorIDs()...)

	return &ServoBus{
		bus:         bus,
		group:       group,
		calibration: cfg.Calibration,
		pending:     make(map[MotorName]float64, len(cfg.Calibration)),
	}, nil
}

// Close closes the bus connection.
func (b *ServoBus) Close() error {
	return b.bus.Close()
}

// Enable switches every servo to wheel mode and enables torque. The mode is
// written while torque is still off.
func (b *ServoBus) Enable(ctx context.Context) error {
	for _, servo := range b.group.Servos() {
		if err := servo.SetOperatingMode(ctx, feetech.ModeVelocity); err != nil {
			return fmt.Errorf("servo %d wheel mode: %w", servo.ID(), err)
		}
	}
	return b.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (b *ServoBus) Disable(ctx context.Context) error {
	return b.group.DisableAll(ctx)
}

// Flush writes the speed commands buffered since the last flush as goal
// velocities in one sync write.
func (b *ServoBus) Flush(ctx context.Context) error {
	proto := b.bus.Protocol()
	b.mu.Lock()
	data := make(map[int][]byte, len(b.pending))
	for name, speed := range b.pending {
		cal, ok := b.calibration[name]
		if !ok {
			continue
		}
		data[cal.ID] = proto.EncodeWord(goalVelocity(cal.Velocity(speed)))
	}
	b.mu.Unlock()

	if len(data) == 0 {
		return nil
	}
	reg := feetech.RegGoalVelocity
	if err := b.bus.SyncWrite(ctx, reg.Address, reg.Size, data); err != nil {
		return fmt.Errorf("write velocities: %w", err)
	}
	return nil
}

// goalVelocity encodes a signed velocity the way the goal velocity register
// expects it: magnitude in the low bits, bit 15 set for reverse.
func goalVelocity(v int) uint16 {
	if v < 0 {
		return uint16(min(-v, 1<<15-1)) | 1<<15
	}
	return uint16(min(v, 1<<15-1))
}

// Actuator returns the channel for one motor.
func (b *ServoBus) Actuator(name MotorName) Actuator {
	return &servoChannel{bus: b, name: name}
}

// Robot wires every motor channel into a Robot. The bus carries no sensors,
// so vision, gyro and ball sensing report no data.
func (b *ServoBus) Robot() *Robot {
	return &Robot{
		Drive:   NewDifferentialDrive(b.Actuator(DriveLeftMotor), b.Actuator(DriveRightMotor)),
		Shooter: b.Actuator(ShooterMotor),
		Intake:  Group{b.Actuator(IntakeMotor), b.Actuator(Intake2Motor)},
		Indexer: b.Actuator(IndexerMotor),
		Gate:    b.Actuator(GateMotor),
		Winch0:  b.Actuator(Winch0Motor),
		Winch1:  b.Actuator(Winch1Motor),
		Gyro:    NoSensors{},
		Vision:  NoSensors{},
		Balls:   NoSensors{},
	}
}

func (b *ServoBus) set(name MotorName, speed float64) {
	b.mu.Lock()
	b.pending[name] = Clamp(speed)
	b.mu.Unlock()
}

func (b *ServoBus) get(name MotorName) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[name]
}

type servoChannel struct {
	bus  *ServoBus
	name MotorName
}

func (c *servoChannel) Set(speed float64) { c.bus.set(c.name, speed) }

func (c *servoChannel) Stop() { c.bus.set(c.name, 0) }

func (c *servoChannel) Output() float64 { return c.bus.get(c.name) }
