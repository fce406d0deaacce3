package functionobject

import (
	"slices"
	"testing"
)

func TestRegister_DuplicatePanics(t *testing.T) {
	setupFake(t)
	defer func() {
		if recover() == nil {
			t.Error("duplicate Register() did not panic")
		}
	}()
	Register(fakeType, func(Spec) (FunctionObject, error) { return nil, nil })
}

func TestTypes(t *testing.T) {
	setupFake(t)
	if !Registered(fakeType) {
		t.Fatalf("%s not registered", fakeType)
	}
	types := Types()
	if !slices.Contains(types, fakeType) {
		t.Errorf("Types() = %v, missing %s", types, fakeType)
	}
	if !slices.IsSorted(types) {
		t.Errorf("Types() not sorted: %v", types)
	}
	if Registered("noSuchType") {
		t.Error("Registered(noSuchType) = true")
	}
}
