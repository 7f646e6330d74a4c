package audit

import "fmt"

// Status is one of the three outcomes a Check may commit to. Unknown
// is reserved for "evidence unavailable", never for "inconclusive but
// arguably okay".
type Status string

const (
	Pass    Status = "pass"
	Fail    Status = "fail"
	Unknown Status = "unknown"
)

// Result is one Check's outcome: a commitment to Pass, Fail, or
// Unknown with a human-readable reason.
type Result struct {
	Name   string
	Status Status
	Reason string
}

// Context threads the optional CPU index and NIC name through every
// Check evaluation.
type Context struct {
	CPU *int
	NIC *string
}

func (c Context) cpu() (int, bool) {
	if c.CPU == nil {
		return 0, false
	}
	return *c.CPU, true
}

func (c Context) nic() (string, bool) {
	if c.NIC == nil {
		return "", false
	}
	return *c.NIC, true
}

func unknown(name, reason string) Result { return Result{Name: name, Status: Unknown, Reason: reason} }
func pass(name, reason string) Result    { return Result{Name: name, Status: Pass, Reason: reason} }
func fail(name, reason string) Result    { return Result{Name: name, Status: Fail, Reason: reason} }

// needCPU is the common "no CPU subject" guard shared by every
// CPU-scoped Check.
func needCPU(ctx Context, name string) (int, bool, Result) {
	cpu, ok := ctx.cpu()
	if !ok {
		return 0, false, unknown(name, "no CPU subject")
	}
	return cpu, true, Result{}
}

// needNIC is the common "no NIC in context" guard shared by every
// NIC-scoped Check.
func needNIC(ctx Context, name string) (string, bool, Result) {
	nic, ok := ctx.nic()
	if !ok {
		return "", false, unknown(name, "no NIC in context")
	}
	return nic, true, Result{}
}

func nicExists(ds DataSource, nic string) bool {
	if _, ok := ds.Read(fmt.Sprintf("/sys/class/net/%s/operstate", nic)); ok {
		return true
	}
	if _, ok := ds.Read(fmt.Sprintf("/sys/class/net/%s/carrier", nic)); ok {
		return true
	}
	if _, ok := ds.Read(fmt.Sprintf("/sys/class/net/%s/address", nic)); ok {
		return true
	}
	return false
}
