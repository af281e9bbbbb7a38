package factorgate

// FactorInput is the sealed union of raw factor payloads. Each variant
// carries its own strongly typed payload, so a payload can never reach a
// digest provider registered for a different factor kind.
type FactorInput interface {
	// FactorType names the variant's factor kind.
	FactorType() FactorType

	sealed()
}

// PatternPoint is one node touch inside a grid pattern.
type PatternPoint struct {
	Row int
	Col int
}

// MotionSample is one pointer or stylus sample in a behavioral trace.
type MotionSample struct {
	X           float64
	Y           float64
	Pressure    float64
	TimestampMS int64
}

// PINInput is the payload for [FactorPIN].
type PINInput struct {
	PIN string
}

func (PINInput) FactorType() FactorType { return FactorPIN }
func (PINInput) sealed()                {}

// PasswordInput is the payload for [FactorPassword].
type PasswordInput struct {
	Password string
}

func (PasswordInput) FactorType() FactorType { return FactorPassword }
func (PasswordInput) sealed()                {}

// PatternInput is the payload for [FactorPattern].
type PatternInput struct {
	Points []PatternPoint
}

func (PatternInput) FactorType() FactorType { return FactorPattern }
func (PatternInput) sealed()                {}

// MouseDynamicsInput is the payload for [FactorMouseDynamics].
type MouseDynamicsInput struct {
	Samples []MotionSample
}

func (MouseDynamicsInput) FactorType() FactorType { return FactorMouseDynamics }
func (MouseDynamicsInput) sealed()                {}

// StylusDynamicsInput is the payload for [FactorStylusDynamics].
type StylusDynamicsInput struct {
	Samples []MotionSample
}

func (StylusDynamicsInput) FactorType() FactorType { return FactorStylusDynamics }
func (StylusDynamicsInput) sealed()                {}

// VoiceInput is the payload for [FactorVoice].
type VoiceInput struct {
	PCM        []int16
	SampleRate int
}

func (VoiceInput) FactorType() FactorType { return FactorVoice }
func (VoiceInput) sealed()                {}

// DeviceKeyInput is the payload for [FactorDeviceKey].
type DeviceKeyInput struct {
	Attestation []byte
}

func (DeviceKeyInput) FactorType() FactorType { return FactorDeviceKey }
func (DeviceKeyInput) sealed()                {}

// SecurityKeyInput is the payload for [FactorSecurityKey].
type SecurityKeyInput struct {
	Assertion []byte
}

func (SecurityKeyInput) FactorType() FactorType { return FactorSecurityKey }
func (SecurityKeyInput) sealed()                {}
