package consoleoutput

import (
	"encoding/json"
	"fmt"
	"github.com/laphir/mitherm/pkg/mithermtypes"
)

// prints each resolved reading as a JSON line

type output struct {
	ch chan mithermtypes.ResolvedReading
}

func (o *output) GetReadingsChan() chan<- mithermtypes.ResolvedReading {
	return o.ch
}

func New() *output {
	ch := make(chan mithermtypes.ResolvedReading, 1)

	go func() {
		for reading := range ch {
			readingAsJson, _ := json.Marshal(reading)

			fmt.Printf("%s\n", readingAsJson)
		}
	}()

	return &output{
		ch: ch,
	}
}
