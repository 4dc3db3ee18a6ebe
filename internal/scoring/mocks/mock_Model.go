// Package mocks provides test doubles for the scoring model.
package mocks

import (
	model "github.com/sells-group/saturn/internal/model"
	scoring "github.com/sells-group/saturn/internal/scoring"
	mock "github.com/stretchr/testify/mock"
)

// MockModel is a mock type for the Model interface.
type MockModel struct {
	mock.Mock
}

// HasTag provides a mock function with given fields: tag
func (_m *MockModel) HasTag(tag scoring.Tag) bool {
	ret := _m.Called(tag)

	if len(ret) == 0 {
		panic("no return value specified for HasTag")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func(scoring.Tag) bool); ok {
		r0 = rf(tag)
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// Predict provides a mock function with given fields: x, output, path
func (_m *MockModel) Predict(x []float64, output model.Output, path ...scoring.Tag) (float64, error) {
	_va := make([]interface{}, len(path))
	for _i := range path {
		_va[_i] = path[_i]
	}
	var _ca []interface{}
	_ca = append(_ca, x, output)
	_ca = append(_ca, _va...)
	ret := _m.Called(_ca...)

	if len(ret) == 0 {
		panic("no return value specified for Predict")
	}

	var r0 float64
	var r1 error
	if rf, ok := ret.Get(0).(func([]float64, model.Output, ...scoring.Tag) (float64, error)); ok {
		return rf(x, output, path...)
	}
	if rf, ok := ret.Get(0).(func([]float64, model.Output, ...scoring.Tag) float64); ok {
		r0 = rf(x, output, path...)
	} else {
		r0 = ret.Get(0).(float64)
	}

	if rf, ok := ret.Get(1).(func([]float64, model.Output, ...scoring.Tag) error); ok {
		r1 = rf(x, output, path...)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockModel creates a new instance of MockModel.
func NewMockModel(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockModel {
	mock := &MockModel{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
