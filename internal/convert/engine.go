// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2word/pkg/types"
)

// NewEngine builds the engine selected by cfg.Kind. Construction does not
// touch external tools; availability is checked when a handle is opened.
func NewEngine(cfg types.EngineConfig, log zerolog.Logger) (Engine, error) {
	log = log.With().Str("component", "engine").Logger()
	switch cfg.Kind {
	case "", types.EngineContainer:
		return NewContainerEngine(cfg.Runtime, cfg.Image, log), nil
	case types.EngineSoffice:
		return NewSofficeEngine(cfg.SofficeBin, log), nil
	case types.EngineRemote:
		e, err := NewRemoteEngine(cfg.RemoteURL, cfg.RemoteToken, cfg.RemoteTimeout, cfg.MaxRetries, log)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want container, soffice, or remote)", cfg.Kind)
	}
}
