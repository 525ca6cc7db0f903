package mastery

import "fmt"

// Parameters is the BKT tuple. Every field is a probability.
type Parameters struct {
	PInit   float64 `json:"pInit"`
	PLearn  float64 `json:"pLearn"`
	PForget float64 `json:"pForget"`
	PSlip   float64 `json:"pSlip"`
	PGuess  float64 `json:"pGuess"`
}

// DefaultParameters applies when neither a learner override nor a grade
// default is available.
var DefaultParameters = Parameters{
	PInit:   0.5,
	PLearn:  0.3,
	PForget: 0.1,
	PSlip:   0.1,
	PGuess:  0.2,
}

// GradeParameters returns the default tuple for grade. Younger learners
// learn slower and guess more.
func GradeParameters(grade int) (Parameters, bool) {
	p := DefaultParameters
	switch grade {
	case 4:
		p.PLearn, p.PGuess = 0.25, 0.25
	case 5:
		p.PLearn, p.PGuess = 0.3, 0.2
	case 6:
		p.PLearn, p.PGuess = 0.35, 0.15
	default:
		return DefaultParameters, false
	}
	return p, true
}

// ParameterOverride replaces the non-nil fields of a learner's parameters.
type ParameterOverride struct {
	PInit   *float64 `json:"pInit,omitempty"`
	PLearn  *float64 `json:"pLearn,omitempty"`
	PForget *float64 `json:"pForget,omitempty"`
	PSlip   *float64 `json:"pSlip,omitempty"`
	PGuess  *float64 `json:"pGuess,omitempty"`
}

func (o ParameterOverride) validate() error {
	for name, v := range map[string]*float64{
		"pInit": o.PInit, "pLearn": o.PLearn, "pForget": o.PForget,
		"pSlip": o.PSlip, "pGuess": o.PGuess,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%w: %s = %v outside [0,1]", ErrInvalidInput, name, *v)
		}
	}
	return nil
}

func (o ParameterOverride) merge(next ParameterOverride) ParameterOverride {
	if next.PInit != nil {
		o.PInit = next.PInit
	}
	if next.PLearn != nil {
		o.PLearn = next.PLearn
	}
	if next.PForget != nil {
		o.PForget = next.PForget
	}
	if next.PSlip != nil {
		o.PSlip = next.PSlip
	}
	if next.PGuess != nil {
		o.PGuess = next.PGuess
	}
	return o
}

func (o ParameterOverride) apply(p Parameters) Parameters {
	if o.PInit != nil {
		p.PInit = *o.PInit
	}
	if o.PLearn != nil {
		p.PLearn = *o.PLearn
	}
	if o.PForget != nil {
		p.PForget = *o.PForget
	}
	if o.PSlip != nil {
		p.PSlip = *o.PSlip
	}
	if o.PGuess != nil {
		p.PGuess = *o.PGuess
	}
	return p
}
