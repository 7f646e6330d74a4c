package output

import (
	"io"

	rtv1 "github.com/rsi-robotics/rtcat-eval/api/v1"
)

type ParameterOutputFunc func(rtv1.Parameter, io.Writer) error

func (fn ParameterOutputFunc) OutputParam(par rtv1.Parameter, w io.Writer) error {
	return fn(par, w)
}

type ParameterOutput interface {
	OutputParam(rtv1.Parameter, io.Writer) error
}
