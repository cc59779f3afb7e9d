package tasks

import (
	"time"

	"github.com/lysyi3m/rss-feeds/app/collector"
	"github.com/lysyi3m/rss-feeds/app/extractor"
	"github.com/lysyi3m/rss-feeds/app/feed"
)

// Definition describes one feed a Worker should poll.
type Definition struct {
	Address     string
	ContentType feed.ContentType
	SourceType  feed.SourceType
	Username    string
	Password    string
}

// DefinitionFromConfig converts a YAML feed definition.
func DefinitionFromConfig(c *feed.Config) Definition {
	return Definition{
		Address:     c.Address,
		ContentType: c.ContentType,
		SourceType:  c.SourceType,
		Username:    c.Username,
		Password:    c.Password,
	}
}

// Factory builds a fresh Collector and Extractor for every Worker. Nothing
// is cached or shared between workers.
type Factory struct {
	collectors map[feed.SourceType]func(def Definition) collector.Collector
	extractors map[feed.ContentType]func() extractor.Extractor
}

func NewFactory(userAgent string, requestTimeout time.Duration) *Factory {
	return &Factory{
		collectors: map[feed.SourceType]func(Definition) collector.Collector{
			feed.SourceTypeREST: func(def Definition) collector.Collector {
				return collector.NewRestCollector(def.Address,
					collector.WithBasicAuth(def.Username, def.Password),
					collector.WithUserAgent(userAgent),
					collector.WithTimeout(requestTimeout),
				)
			},
		},
		extractors: map[feed.ContentType]func() extractor.Extractor{
			feed.ContentTypeXML:  func() extractor.Extractor { return extractor.NewXMLExtractor() },
			feed.ContentTypeJSON: func() extractor.Extractor { return extractor.NewJSONExtractor() },
		},
	}
}

// Collector returns nil for an unknown or undefined source type.
func (f *Factory) Collector(def Definition) collector.Collector {
	build, ok := f.collectors[def.SourceType]
	if !ok {
		return nil
	}
	return build(def)
}

// Extractor returns nil for content types without an extractor.
func (f *Factory) Extractor(contentType feed.ContentType) extractor.Extractor {
	build, ok := f.extractors[contentType]
	if !ok {
		return nil
	}
	return build()
}
