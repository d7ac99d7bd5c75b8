// Package json formats producer.Record values as JSON-lines, one object
// per record, for the file transport to append.
package json

import (
	"encoding/json"

	"github.com/flowbridge/flowdecode/format"
	"github.com/flowbridge/flowdecode/producer"
)

type JsonDriver struct{}

func (d *JsonDriver) Prepare() error { return nil }
func (d *JsonDriver) Init() error    { return nil }

// Format marshals data (a *producer.Record) to a single JSON line. The
// key is the exporter address, so transports that partition output by
// key (eg Kafka) can shard per exporter; the file transport ignores it.
func (d *JsonDriver) Format(data interface{}) ([]byte, []byte, error) {
	var key []byte
	if rec, ok := data.(*producer.Record); ok {
		if host, ok := rec.Client[0].(string); ok {
			key = []byte(host)
		}
	}

	output, err := json.Marshal(data)
	if err != nil {
		return key, nil, err
	}
	return key, append(output, '\n'), nil
}

func init() {
	format.RegisterFormatDriver("json", &JsonDriver{})
}
