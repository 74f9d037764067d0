package types

// Options configures a table server at construction time. Recognized
// fields mirror spec.md §6: Type, KeyPos, HandleConflict (ordered_set
// only), HandleDown.
type Options struct {
	Type           TableType
	KeyPos         int
	HandleConflict ConflictHandler
	HandleDown     HandleDownFunc
}

// DefaultOptions returns the zero-value-safe option set: an
// OrderedSet table keyed at position 1, no conflict handler, no
// down callback. Mirrors the teacher's DefaultConfiguration(name)
// convenience constructor.
func DefaultOptions() Options {
	return Options{
		Type:   OrderedSet,
		KeyPos: 1,
	}
}

// Validate applies the static construction-time rules: a Bag table
// may never carry a conflict handler, because bags never participate
// in join-time conflict resolution (spec.md §4.4 step 9), and KeyPos
// must be at least 1.
func (o Options) Validate() error {
	if o.Type == Bag && o.HandleConflict != nil {
		return ErrBagWithConflictHandler
	}
	if o.KeyPos < 1 {
		return ErrInvalidKeyPos
	}
	return nil
}

// withDefaults fills the zero value of KeyPos so callers that only set
// Type don't have to remember KeyPos: 1 explicitly.
func (o Options) withDefaults() Options {
	if o.KeyPos == 0 {
		o.KeyPos = 1
	}
	return o
}

// Normalize returns o with defaults applied and validates it.
func (o Options) Normalize() (Options, error) {
	o = o.withDefaults()
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}
