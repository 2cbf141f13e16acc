package behaviors

import (
	"fmt"

	"github.com/kingrea/robot-behaviors/internal/behavior"
)

// Register installs every built-in class into reg.
func Register(reg *behavior.Registry) error {
	classes := []struct {
		class   behavior.Class
		factory behavior.Factory
	}{
		{ClassWait, NewWait},
		{ClassPlayAnimation, NewPlayAnimation},
		{ClassHelperSequence, NewHelperSequence},
		{ClassTree, NewTree},
	}
	for _, c := range classes {
		if err := reg.Register(c.class, c.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry preloaded with the built-in classes.
func NewRegistry() *behavior.Registry {
	reg := behavior.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}

func errRange(id behavior.ID, param string) error {
	return fmt.Errorf("behaviors: %s: %s is out of range", id, param)
}
