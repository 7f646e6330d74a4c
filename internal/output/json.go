package output

import (
	"encoding/json"
	"io"

	rtv1 "github.com/rsi-robotics/rtcat-eval/api/v1"
)

// JsonOutput renders a Parameter as indented JSON. It is not reachable
// from any CLI flag (the locked CLI surface has no --json flag) but
// remains part of the public output contract for programmatic callers
// embedding this package; see output_test.go.
type JsonOutput struct{}

func (p *JsonOutput) OutputParam(par rtv1.Parameter, w io.Writer) error {

	data, err := json.MarshalIndent(par, "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
