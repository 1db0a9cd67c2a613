// Package preset reads, verifies and writes tinySA4 preset files: 1584-byte
// little-endian snapshots of the instrument's settings protected by a
// rotate-and-add checksum.
package preset

import (
	"errors"
	"fmt"
)

// ErrBadMagic is matched by *MagicError.
var ErrBadMagic = errors.New("not a tinySA4 preset")

// MagicError reports a record whose magic number is wrong.
type MagicError struct {
	Got uint32
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("bad preset magic 0x%08X, want 0x%08X", e.Got, Magic)
}

func (e *MagicError) Is(target error) bool { return target == ErrBadMagic }

// Band is one entry of the multi-band sweep table.
type Band struct {
	Name       string  `json:"name"`
	Enabled    bool    `json:"enabled"`
	Start      uint64  `json:"start"`
	End        uint64  `json:"end"`
	Level      float32 `json:"level"`
	StartIndex int32   `json:"start_index"`
	StopIndex  int32   `json:"stop_index"`
}

func (b *Band) walk(c *cursor) {
	c.record(func() {
		c.chars(&b.Name, BandNameSize)
		c.boolean(&b.Enabled)
		c.u64(&b.Start)
		c.u64(&b.End)
		c.f32(&b.Level)
		c.i32(&b.StartIndex)
		c.i32(&b.StopIndex)
	})
}

// Marker is one on-screen marker.
type Marker struct {
	Type      uint8  `json:"mtype"`
	Enabled   uint8  `json:"enabled"`
	Ref       uint8  `json:"ref"`
	Trace     uint8  `json:"trace"`
	Index     int16  `json:"index"`
	Frequency uint64 `json:"frequency"`
}

func (m *Marker) walk(c *cursor) {
	c.record(func() {
		c.u8(&m.Type)
		c.u8(&m.Enabled)
		c.u8(&m.Ref)
		c.u8(&m.Trace)
		c.i16(&m.Index)
		c.u64(&m.Frequency)
	})
}

// Limit is one point of a limit line.
type Limit struct {
	Enabled   uint8   `json:"enabled"`
	Level     float32 `json:"level"`
	Frequency uint64  `json:"frequency"`
	Index     int16   `json:"index"`
}

func (l *Limit) walk(c *cursor) {
	c.record(func() {
		c.u8(&l.Enabled)
		c.f32(&l.Level)
		c.u64(&l.Frequency)
		c.i16(&l.Index)
	})
}

// Preset is the decoded settings record. JSON names follow the firmware's
// field names so exports stay compatible with existing tooling.
type Preset struct {
	Magic uint32 `json:"-"`

	AutoRefLevel    bool `json:"auto_reflevel"`
	AutoAttenuation bool `json:"auto_attenuation"`
	MirrorMasking   bool `json:"mirror_masking"`
	TrackingOutput  bool `json:"tracking_output"`
	Mute            bool `json:"mute"`
	AutoIF          bool `json:"auto_if"`
	Sweep           bool `json:"sweep"`
	Pulse           bool `json:"pulse"`

	Stored     [TracesMax]bool `json:"stored"`
	Normalized [TracesMax]bool `json:"normalized"`
	Bands      [BandsMax]Band  `json:"bands"`

	Mode             uint8 `json:"mode"`
	BelowIF          uint8 `json:"below_IF"`
	Unit             uint8 `json:"unit"`
	AGC              uint8 `json:"agc"`
	LNA              uint8 `json:"lna"`
	Modulation       uint8 `json:"modulation"`
	Trigger          uint8 `json:"trigger"`
	TriggerMode      uint8 `json:"trigger_mode"`
	TriggerDirection uint8 `json:"trigger_direction"`
	TriggerBeep      uint8 `json:"trigger_beep"`
	TriggerAutoSave  uint8 `json:"trigger_auto_save"`
	StepDelayMode    uint8 `json:"step_delay_mode"`
	Waterfall        uint8 `json:"waterfall"`
	LevelMeter       uint8 `json:"level_meter"`

	Average  [TracesMax]uint8 `json:"average"`
	Subtract [TracesMax]uint8 `json:"subtract"`

	Measurement       uint8 `json:"measurement"`
	SpurRemoval       uint8 `json:"spur_removal"`
	DisableCorrection uint8 `json:"disable_correction"`
	NormalizedTrace   int8  `json:"normalized_trace"`
	Listen            uint8 `json:"listen"`

	// Tracking is -1, 0 or 1.
	Tracking       int8  `json:"tracking"`
	AttenStep      uint8 `json:"atten_step"`
	ActiveMarker   int8  `json:"_active_marker"`
	UnitScaleIndex uint8 `json:"unit_scale_index"`
	Noise          uint8 `json:"noise"`
	LODrive        uint8 `json:"lo_drive"`
	RXDrive        uint8 `json:"rx_drive"`
	Test           uint8 `json:"test"`
	Harmonic       uint8 `json:"harmonic"`
	FastSpeedup    uint8 `json:"fast_speedup"`
	FasterSpeedup  uint8 `json:"faster_speedup"`
	Traces         uint8 `json:"_traces"`
	DrawLine       uint8 `json:"draw_line"`
	LockDisplay    uint8 `json:"lock_display"`
	JogJump        uint8 `json:"jog_jump"`
	MultiBand      uint8 `json:"multi_band"`
	MultiTrace     uint8 `json:"multi_trace"`
	TriggerTrace   uint8 `json:"trigger_trace"`

	Repeat        uint16 `json:"repeat"`
	LinearityStep uint16 `json:"linearity_step"`
	SweepPoints   uint16 `json:"_sweep_points"`
	AttenuateX2   int16  `json:"attenuate_x2"`

	StepDelay   uint16 `json:"step_delay"`
	OffsetDelay uint16 `json:"offset_delay"`
	FreqMode    uint16 `json:"freq_mode"`
	Refer       int16  `json:"refer"`

	ModulationDepthX100       uint16 `json:"modulation_depth_x100"`
	ModulationDeviationDiv100 uint16 `json:"modulation_deviation_div100"`

	Decay          int32  `json:"decay"`
	Attack         int32  `json:"attack"`
	SliderPosition int32  `json:"slider_position"`
	SliderSpan     uint64 `json:"slider_span"`

	RBWx10         uint32            `json:"rbw_x10"`
	VBWx100        uint32            `json:"vbw_x100"`
	ScanAfterDirty [TracesMax]uint32 `json:"scan_after_dirty"`

	ModulationFrequency float32 `json:"modulation_frequency"`
	RefLevel            float32 `json:"reflevel"`
	Scale               float32 `json:"scale"`
	ExternalGain        float32 `json:"external_gain"`
	TriggerLevel        float32 `json:"trigger_level"`
	Level               float32 `json:"level"`
	LevelSweep          float32 `json:"level_sweep"`
	UnitScale           float32 `json:"unit_scale"`
	NormalizeLevel      float32 `json:"normalize_level"`

	FrequencyStep   uint64  `json:"frequency_step"`
	Frequency0      uint64  `json:"frequency0"`
	Frequency1      uint64  `json:"frequency1"`
	FrequencyVar    uint64  `json:"frequency_var"`
	FrequencyIF     uint64  `json:"frequency_IF"`
	FrequencyOffset uint64  `json:"frequency_offset"`
	TraceScale      float32 `json:"trace_scale"`
	TraceRefPos     float32 `json:"trace_refpos"`

	Markers [MarkersMax]Marker             `json:"_markers"`
	Limits  [ReferenceMax][LimitsMax]Limit `json:"limits"`

	SweepTimeUs           uint32 `json:"sweep_time_us"`
	MeasureSweepTimeUs    uint32 `json:"measure_sweep_time_us"`
	ActualSweepTimeUs     uint32 `json:"actual_sweep_time_us"`
	AdditionalStepDelayUs uint32 `json:"additional_step_delay_us"`
	TriggerGrid           uint32 `json:"trigger_grid"`

	Ultra        uint8  `json:"ultra"`
	ExtraLNA     bool   `json:"extra_lna"`
	R            int32  `json:"R"`
	ExpAver      int32  `json:"exp_aver"`
	IncreasedR   bool   `json:"increased_R"`
	MixerOutput  bool   `json:"mixer_output"`
	Interval     uint32 `json:"interval"`
	Name         string `json:"preset_name"`
	DBuV         bool   `json:"dBuV"`
	TestArgument int64  `json:"test_argument"`

	// Checksum is the stored value; Seal replaces it with the computed one.
	Checksum uint32 `json:"-"`

	// image is the record this preset was decoded from. Encoding starts
	// from it so padding bytes, which the checksum covers, survive.
	image []byte
}

func (p *Preset) walk(c *cursor) {
	c.u32(&p.Magic)
	for _, b := range []*bool{
		&p.AutoRefLevel, &p.AutoAttenuation, &p.MirrorMasking, &p.TrackingOutput,
		&p.Mute, &p.AutoIF, &p.Sweep, &p.Pulse,
	} {
		c.boolean(b)
	}
	for i := range p.Stored {
		c.boolean(&p.Stored[i])
	}
	for i := range p.Normalized {
		c.boolean(&p.Normalized[i])
	}
	for i := range p.Bands {
		p.Bands[i].walk(c)
	}

	for _, b := range []*uint8{
		&p.Mode, &p.BelowIF, &p.Unit, &p.AGC, &p.LNA, &p.Modulation, &p.Trigger,
		&p.TriggerMode, &p.TriggerDirection, &p.TriggerBeep, &p.TriggerAutoSave,
		&p.StepDelayMode, &p.Waterfall, &p.LevelMeter,
	} {
		c.u8(b)
	}
	for i := range p.Average {
		c.u8(&p.Average[i])
	}
	for i := range p.Subtract {
		c.u8(&p.Subtract[i])
	}
	c.u8(&p.Measurement)
	c.u8(&p.SpurRemoval)
	c.u8(&p.DisableCorrection)
	c.i8(&p.NormalizedTrace)
	c.u8(&p.Listen)

	c.i8(&p.Tracking)
	c.u8(&p.AttenStep)
	c.i8(&p.ActiveMarker)
	for _, b := range []*uint8{
		&p.UnitScaleIndex, &p.Noise, &p.LODrive, &p.RXDrive, &p.Test, &p.Harmonic,
		&p.FastSpeedup, &p.FasterSpeedup, &p.Traces, &p.DrawLine, &p.LockDisplay,
		&p.JogJump, &p.MultiBand, &p.MultiTrace, &p.TriggerTrace,
	} {
		c.u8(b)
	}
	c.u16(&p.Repeat)
	c.u16(&p.LinearityStep)
	c.u16(&p.SweepPoints)
	c.i16(&p.AttenuateX2)
	c.u16(&p.StepDelay)
	c.u16(&p.OffsetDelay)
	c.u16(&p.FreqMode)
	c.i16(&p.Refer)
	c.u16(&p.ModulationDepthX100)
	c.u16(&p.ModulationDeviationDiv100)

	c.i32(&p.Decay)
	c.i32(&p.Attack)
	c.i32(&p.SliderPosition)
	c.u64(&p.SliderSpan)
	c.u32(&p.RBWx10)
	c.u32(&p.VBWx100)
	for i := range p.ScanAfterDirty {
		c.u32(&p.ScanAfterDirty[i])
	}

	for _, f := range []*float32{
		&p.ModulationFrequency, &p.RefLevel, &p.Scale, &p.ExternalGain,
		&p.TriggerLevel, &p.Level, &p.LevelSweep, &p.UnitScale, &p.NormalizeLevel,
	} {
		c.f32(f)
	}
	for _, f := range []*uint64{
		&p.FrequencyStep, &p.Frequency0, &p.Frequency1, &p.FrequencyVar,
		&p.FrequencyIF, &p.FrequencyOffset,
	} {
		c.u64(f)
	}
	c.f32(&p.TraceScale)
	c.f32(&p.TraceRefPos)

	for i := range p.Markers {
		p.Markers[i].walk(c)
	}
	for i := range p.Limits {
		for j := range p.Limits[i] {
			p.Limits[i][j].walk(c)
		}
	}

	c.u32(&p.SweepTimeUs)
	c.u32(&p.MeasureSweepTimeUs)
	c.u32(&p.ActualSweepTimeUs)
	c.u32(&p.AdditionalStepDelayUs)
	c.u32(&p.TriggerGrid)

	c.u8(&p.Ultra)
	c.boolean(&p.ExtraLNA)
	c.i32(&p.R)
	c.i32(&p.ExpAver)
	c.boolean(&p.IncreasedR)
	c.boolean(&p.MixerOutput)
	c.u32(&p.Interval)
	c.chars(&p.Name, PresetNameLength)
	c.boolean(&p.DBuV)
	c.i64(&p.TestArgument)

	c.u32(&p.Checksum)
	c.align(8)
}

// Decode parses a record. buf must hold at least Size bytes; anything after
// Size is ignored. A wrong magic or checksum is not an error here, the
// values are kept for the caller to inspect (see DecodeStrict).
func Decode(buf []byte) (*Preset, error) {
	if len(buf) < Size {
		return nil, &TruncatedFileError{Expected: Size, Actual: len(buf)}
	}
	p := &Preset{image: append([]byte(nil), buf[:Size]...)}
	p.walk(&cursor{buf: p.image})
	return p, nil
}

// DecodeStrict is Decode that also rejects a wrong magic or checksum.
func DecodeStrict(buf []byte) (*Preset, error) {
	p, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	if p.Magic != Magic {
		return nil, &MagicError{Got: p.Magic}
	}
	if sum := Checksum(buf); sum != p.Checksum {
		return nil, &ChecksumMismatchError{Computed: sum, Stored: p.Checksum}
	}
	return p, nil
}

// Encode returns the record with p.Checksum written as is.
func (p *Preset) Encode() []byte {
	buf := make([]byte, Size)
	copy(buf, p.image)
	p.walk(&cursor{buf: buf, write: true})
	return buf
}

// Seal computes the checksum, stores it in p and returns the encoded record.
func (p *Preset) Seal() []byte {
	p.Checksum = Checksum(p.Encode())
	return p.Encode()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Preset) MarshalBinary() ([]byte, error) {
	return p.Encode(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Preset) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}
