package model

// DecodingOptions are the sampling parameters sent with a single request.
// Zero values mean "omit and use the endpoint default", except Temperature,
// which is always sent once a schedule produced it.
type DecodingOptions struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p,omitempty"`
	TopK            int     `json:"top_k,omitempty"`
	RepeatPenalty   float64 `json:"repeat_penalty,omitempty"`
	ContextTokens   int     `json:"num_ctx,omitempty"`
	MaxOutputTokens int     `json:"num_predict,omitempty"`
	Mirostat        int     `json:"mirostat,omitempty"`
	MirostatTau     float64 `json:"mirostat_tau,omitempty"`
}

// DecodingTier is one attempt band of an escalation schedule. Within a tier
// the temperature grows linearly with the attempt index.
type DecodingTier struct {
	// UpToAttempt is the last zero-based attempt index this tier covers.
	// Negative means open-ended; the final tier is treated as open-ended
	// regardless.
	UpToAttempt int `json:"up_to_attempt"`

	Temperature      float64 `json:"temperature"`
	TemperatureSlope float64 `json:"temperature_slope"`
	TopP             float64 `json:"top_p,omitempty"`
	TopK             int     `json:"top_k,omitempty"`
}

// DecodingSchedule escalates decoding parameters monotonically with the
// attempt index to break out of degenerate empty-output loops. It is
// configuration data per worker class, never hard-coded per model name; the
// knob values are empirically tuned workarounds, not invariants.
type DecodingSchedule struct {
	Tiers []DecodingTier `json:"tiers"`

	// MaxTemperature caps escalation. 0 means no cap.
	MaxTemperature float64 `json:"max_temperature,omitempty"`

	// RepeatPenaltyBase minus RepeatPenaltySlope per attempt, floored at 1.0.
	// 0 base omits the knob entirely.
	RepeatPenaltyBase  float64 `json:"repeat_penalty_base,omitempty"`
	RepeatPenaltySlope float64 `json:"repeat_penalty_slope,omitempty"`

	// ContextBase shrinks by ContextShrink per attempt down to ContextFloor,
	// trading context room for a better chance of any output at all.
	ContextBase   int `json:"context_base,omitempty"`
	ContextShrink int `json:"context_shrink,omitempty"`
	ContextFloor  int `json:"context_floor,omitempty"`

	// OutputBase grows by OutputGrow per attempt.
	OutputBase int `json:"output_base,omitempty"`
	OutputGrow int `json:"output_grow,omitempty"`

	// MirostatAfter enables mirostat v2 on attempts strictly later than this
	// index. 0 disables mirostat.
	MirostatAfter int     `json:"mirostat_after,omitempty"`
	MirostatTau   float64 `json:"mirostat_tau,omitempty"`
}

// Options computes the decoding parameters for a zero-based attempt index.
func (s DecodingSchedule) Options(attempt int) DecodingOptions {
	if attempt < 0 {
		attempt = 0
	}

	tier := s.tierFor(attempt)
	opts := DecodingOptions{
		Temperature: tier.Temperature + tier.TemperatureSlope*float64(attempt),
		TopP:        tier.TopP,
		TopK:        tier.TopK,
	}
	if s.MaxTemperature > 0 && opts.Temperature > s.MaxTemperature {
		opts.Temperature = s.MaxTemperature
	}

	if s.RepeatPenaltyBase > 0 {
		rp := s.RepeatPenaltyBase - s.RepeatPenaltySlope*float64(attempt)
		opts.RepeatPenalty = max(rp, 1.0)
	}
	if s.ContextBase > 0 {
		ctx := s.ContextBase - s.ContextShrink*attempt
		opts.ContextTokens = max(ctx, s.ContextFloor)
	}
	if s.OutputBase > 0 {
		opts.MaxOutputTokens = s.OutputBase + s.OutputGrow*attempt
	}
	if s.MirostatAfter > 0 && attempt > s.MirostatAfter {
		opts.Mirostat = 2
		opts.MirostatTau = s.MirostatTau
	}

	return opts
}

func (s DecodingSchedule) tierFor(attempt int) DecodingTier {
	if len(s.Tiers) == 0 {
		return DecodingTier{Temperature: 0.1, TemperatureSlope: 0.1}
	}
	for i, tier := range s.Tiers {
		if i == len(s.Tiers)-1 {
			return tier
		}
		if tier.UpToAttempt >= 0 && attempt <= tier.UpToAttempt {
			return tier
		}
	}
	return s.Tiers[len(s.Tiers)-1]
}

// DefaultSchedules returns the escalation schedules observed to work per
// worker class.
func DefaultSchedules() map[Class]DecodingSchedule {
	return map[Class]DecodingSchedule{
		ClassStandard: {
			Tiers: []DecodingTier{
				{UpToAttempt: -1, Temperature: 0.1, TemperatureSlope: 0.1, TopP: 0.9},
			},
		},
		ClassCloud: {
			Tiers: []DecodingTier{
				{UpToAttempt: -1, Temperature: 0.7},
			},
		},
		ClassConstrained: {
			Tiers: []DecodingTier{
				{UpToAttempt: 2, Temperature: 0.6, TemperatureSlope: 0.2, TopP: 0.95, TopK: 60},
				{UpToAttempt: 5, Temperature: 0.9, TemperatureSlope: 0.1, TopP: 0.98, TopK: 80},
				{UpToAttempt: -1, Temperature: 1.2, TemperatureSlope: 0.1, TopP: 1.0, TopK: 100},
			},
			MaxTemperature:     2.0,
			RepeatPenaltyBase:  1.05,
			RepeatPenaltySlope: 0.01,
			ContextBase:        2048,
			ContextShrink:      100,
			ContextFloor:       1024,
			OutputBase:         100,
			OutputGrow:         10,
			MirostatAfter:      3,
			MirostatTau:        5.0,
		},
	}
}
