package srv

type Srv struct {
	ai AIDriver
}

type ApplyFunc func(*Srv)

func SetupSrvs(opts ...ApplyFunc) *Srv {
	a := &Srv{}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (s *Srv) AI() AIDriver {
	return s.ai
}

// ApplyAIDriver installs an already built driver, bypassing config. Tests
// use it to stub the model.
func ApplyAIDriver(driver AIDriver) ApplyFunc {
	return func(s *Srv) {
		s.ai = driver
	}
}
