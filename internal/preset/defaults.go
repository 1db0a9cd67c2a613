package preset

// Mode values.
const (
	ModeLow uint8 = iota
	ModeHigh
	ModeGenLow
	ModeGenHigh
	ModeUltra
)

// Values shared by the auto/on/off settings (below_IF, agc, lna,
// spur_removal).
const (
	SettingOff uint8 = iota
	SettingOn
	SettingAutoOff
	SettingAutoOn
)

// Units.
const (
	UnitDBm uint8 = iota
	UnitDBmV
	UnitDBuV
	UnitRaw
	UnitVolt
	UnitVpp
	UnitWatt
	UnitDBc
)

// Trigger settings.
const (
	TriggerAuto uint8 = 0
	TriggerUp   uint8 = 4
	TriggerMid  uint8 = 9
)

// Default returns the settings the firmware starts from after a reset.
// Fields not listed are zero.
func Default() *Preset {
	p := &Preset{
		Magic: Magic,

		AutoRefLevel:    true,
		AutoAttenuation: true,
		Mute:            true,
		AutoIF:          true,

		Mode:             ModeLow,
		BelowIF:          SettingAutoOff,
		Unit:             UnitDBm,
		AGC:              SettingAutoOn,
		LNA:              SettingAutoOff,
		Trigger:          TriggerAuto,
		TriggerMode:      TriggerMid,
		TriggerDirection: TriggerUp,
		SpurRemoval:      SettingAutoOff,
		NormalizedTrace:  -1,

		Noise:        5,
		LODrive:      5,
		RXDrive:      12,
		Harmonic:     3,
		Traces:       1,
		TriggerTrace: 255,
		Repeat:       1,
		SweepPoints:  450,

		Refer:                     -1,
		ModulationDepthX100:       80,
		ModulationDeviationDiv100: 30,
		Decay:                     20,
		Attack:                    1,
		SliderSpan:                100_000,

		ModulationFrequency: 1000,
		RefLevel:            -10,
		Scale:               10,
		TriggerLevel:        -150,

		FrequencyStep:   1_781_737,
		Frequency1:      800_000_000,
		FrequencyIF:     977_400_000,
		FrequencyOffset: 100_000_000,
		TraceScale:      10,
		TraceRefPos:     -10,

		MixerOutput: true,
	}
	return p
}
