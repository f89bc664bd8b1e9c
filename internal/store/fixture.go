package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/debtlink/internal/model"
)

// Dataset is a YAML snapshot of upstream extraction output: companies, their
// instruments and document sections, plus optionally links already on file.
type Dataset struct {
	Companies   []model.Company         `yaml:"companies"`
	Instruments []model.DebtInstrument  `yaml:"instruments"`
	Documents   []model.DocumentSection `yaml:"documents"`
	Links       []model.DocumentLink    `yaml:"links,omitempty"`
}

// fixtureInstrument defaults Active to true when the key is absent.
type fixtureInstrument model.DebtInstrument

func (f *fixtureInstrument) UnmarshalYAML(n *yaml.Node) error {
	type plain model.DebtInstrument
	p := plain{Active: true}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*f = fixtureInstrument(p)
	return nil
}

type rawDataset struct {
	Companies   []model.Company         `yaml:"companies"`
	Instruments []fixtureInstrument     `yaml:"instruments"`
	Documents   []model.DocumentSection `yaml:"documents"`
	Links       []model.DocumentLink    `yaml:"links"`
}

// LoadDataset reads and validates a YAML dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: load %s", path)
	}
	return ds, nil
}

// ParseDataset decodes and validates a YAML dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	var raw rawDataset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "fixture: parse yaml")
	}
	ds := &Dataset{
		Companies: raw.Companies,
		Documents: raw.Documents,
		Links:     raw.Links,
	}
	for _, i := range raw.Instruments {
		ds.Instruments = append(ds.Instruments, model.DebtInstrument(i))
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Validate checks identities and references once, at the storage boundary.
func (d *Dataset) Validate() error {
	var errs []string
	companies := make(map[int64]bool, len(d.Companies))
	for _, c := range d.Companies {
		switch {
		case c.ID <= 0:
			errs = append(errs, fmt.Sprintf("company %q has no id", c.Name))
		case companies[c.ID]:
			errs = append(errs, fmt.Sprintf("duplicate company id %d", c.ID))
		case strings.TrimSpace(c.Name) == "":
			errs = append(errs, fmt.Sprintf("company %d has no name", c.ID))
		}
		companies[c.ID] = true
	}

	instruments := make(map[int64]bool, len(d.Instruments))
	for _, i := range d.Instruments {
		switch {
		case i.ID <= 0:
			errs = append(errs, fmt.Sprintf("instrument %q has no id", i.Name))
		case instruments[i.ID]:
			errs = append(errs, fmt.Sprintf("duplicate instrument id %d", i.ID))
		case !companies[i.CompanyID]:
			errs = append(errs, fmt.Sprintf("instrument %d references unknown company %d", i.ID, i.CompanyID))
		case i.CouponBps != nil && *i.CouponBps < 0:
			errs = append(errs, fmt.Sprintf("instrument %d has negative coupon", i.ID))
		}
		instruments[i.ID] = true
	}

	documents := make(map[int64]bool, len(d.Documents))
	for _, doc := range d.Documents {
		switch {
		case doc.ID <= 0:
			errs = append(errs, fmt.Sprintf("document %q has no id", doc.Title))
		case documents[doc.ID]:
			errs = append(errs, fmt.Sprintf("duplicate document id %d", doc.ID))
		case !companies[doc.CompanyID]:
			errs = append(errs, fmt.Sprintf("document %d references unknown company %d", doc.ID, doc.CompanyID))
		case !knownSection(doc.SectionType):
			errs = append(errs, fmt.Sprintf("document %d has unknown section_type %q", doc.ID, doc.SectionType))
		}
		documents[doc.ID] = true
	}

	for _, l := range d.Links {
		if !instruments[l.InstrumentID] || !documents[l.DocumentID] {
			errs = append(errs, fmt.Sprintf("link %d/%d references an unknown instrument or document", l.InstrumentID, l.DocumentID))
		}
		if l.Confidence < 0 || l.Confidence > 1 {
			errs = append(errs, fmt.Sprintf("link %d/%d confidence %g outside [0, 1]", l.InstrumentID, l.DocumentID, l.Confidence))
		}
	}

	if len(errs) > 0 {
		return eris.New("fixture: " + strings.Join(errs, "; "))
	}
	return nil
}

func knownSection(t model.SectionType) bool {
	switch t {
	case model.SectionIndenture, model.SectionCreditAgreement, model.SectionDebtFootnote, model.SectionOther:
		return true
	}
	return false
}
