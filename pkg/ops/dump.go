package ops

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/internal/metrics"
	"github.com/tcfw/chainprover/internal/utils/logging"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Debug controls saving the inputs of failed operations
type Debug struct {
	SaveInputsOnError bool   `msgpack:"s"`
	Dir               string `msgpack:"d"`
}

// DumpInfo describes a failed operation whose inputs were saved
type DumpInfo struct {
	Op      string    `yaml:"op"`
	Block   uint64    `yaml:"block"`
	Txn     string    `yaml:"txn,omitempty"`
	Segment *int      `yaml:"segment,omitempty"`
	Error   string    `yaml:"error"`
	At      time.Time `yaml:"at"`
	Payload string    `yaml:"payload"`
}

// dump writes the payload next to a yaml description of the failure. Write
// failures are logged and otherwise ignored.
func (d Debug) dump(name string, info DumpInfo, payload interface{}) {
	if !d.SaveInputsOnError {
		return
	}

	err := d.write(name, info, payload)
	metrics.ObserveDump(err)

	if err != nil {
		logging.WithError(err).WithField("name", name).Error("failed to save operation inputs")
		return
	}

	logging.WithFields(logging.Fields{"name": name, "dir": d.Dir}).Info("saved operation inputs")
}

func (d Debug) write(name string, info DumpInfo, payload interface{}) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating debug dir")
	}

	b, err := msgpack.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}

	payloadFile := name + ".msgpack"
	if err := os.WriteFile(filepath.Join(dir, payloadFile), b, 0644); err != nil {
		return errors.Wrap(err, "writing payload")
	}

	info.At = time.Now().UTC()
	info.Payload = payloadFile

	y, err := yaml.Marshal(&info)
	if err != nil {
		return errors.Wrap(err, "encoding description")
	}

	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), y, 0644); err != nil {
		return errors.Wrap(err, "writing description")
	}

	return nil
}

// ReadDump loads a payload written for a failed operation
func ReadDump(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return msgpack.Unmarshal(b, v)
}
