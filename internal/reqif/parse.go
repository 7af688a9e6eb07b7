// Package reqif is the thin glue around ReqIF 1.2 XML. It produces the
// fixed intermediate document structure the normalizer consumes and does
// nothing else: no referential integrity checks, no interpretation.
package reqif

import (
	"encoding/xml"

	"github.com/reqgate/reqgate/internal/model"
)

// AttributeValue is one attribute value on a spec object.
type AttributeValue struct {
	DefinitionRef string `json:"definition_ref"`
	Value         string `json:"value"`
}

// SpecObject represents a single requirement in the source document.
type SpecObject struct {
	Identifier  string           `json:"identifier"`
	SpecTypeRef string           `json:"spec_type_ref"`
	Attributes  []AttributeValue `json:"attributes"`
}

// AttributeDefinition describes one attribute a spec type declares.
type AttributeDefinition struct {
	Identifier string `json:"identifier"`
	LongName   string `json:"long_name"`
	DataType   string `json:"data_type"`
}

// SpecType is the type/template a spec object references.
type SpecType struct {
	Identifier           string                `json:"identifier"`
	LongName             string                `json:"long_name"`
	AttributeDefinitions []AttributeDefinition `json:"attribute_definitions"`
}

// Header carries the document-level metadata.
type Header struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Comment    string `json:"comment,omitempty"`
}

// Document is the parsed intermediate structure.
type Document struct {
	Header               Header                `json:"header"`
	SpecObjects          []SpecObject          `json:"spec_objects"`
	SpecTypes            []SpecType            `json:"spec_types"`
	AttributeDefinitions []AttributeDefinition `json:"attribute_definitions"`
}

// xml wire shapes, local names only so namespaced documents decode too.

type xmlReqIF struct {
	XMLName xml.Name   `xml:"REQ-IF"`
	Header  xmlHeader  `xml:"THE-HEADER>REQ-IF-HEADER"`
	Content xmlContent `xml:"CORE-CONTENT>REQ-IF-CONTENT"`
}

type xmlHeader struct {
	Identifier string `xml:"IDENTIFIER,attr"`
	Title      string `xml:"TITLE"`
	Comment    string `xml:"COMMENT"`
}

type xmlContent struct {
	SpecTypes   []xmlSpecObjectType `xml:"SPEC-TYPES>SPEC-OBJECT-TYPE"`
	SpecObjects []xmlSpecObject     `xml:"SPEC-OBJECTS>SPEC-OBJECT"`
}

type xmlSpecObjectType struct {
	Identifier string       `xml:"IDENTIFIER,attr"`
	LongName   string       `xml:"LONG-NAME,attr"`
	AttrDefs   []xmlAttrDef `xml:"SPEC-ATTRIBUTES>ATTRIBUTE-DEFINITION-STRING"`
}

type xmlAttrDef struct {
	Identifier string `xml:"IDENTIFIER,attr"`
	LongName   string `xml:"LONG-NAME,attr"`
}

type xmlSpecObject struct {
	Identifier string         `xml:"IDENTIFIER,attr"`
	TypeRef    string         `xml:"TYPE>SPEC-OBJECT-TYPE-REF"`
	Values     []xmlAttrValue `xml:"VALUES>ATTRIBUTE-VALUE-STRING"`
}

type xmlAttrValue struct {
	// THE-VALUE appears as a child element in exported documents and as
	// an attribute in hand-written ones; accept both.
	ValueElem     string `xml:"THE-VALUE"`
	ValueAttr     string `xml:"THE-VALUE,attr"`
	DefinitionRef string `xml:"DEFINITION>ATTRIBUTE-DEFINITION-STRING-REF"`
}

// Parse decodes a ReqIF 1.2 document. A root element other than REQ-IF or
// broken XML yields an InputError; an unresolvable spec_type_ref is not an
// error here (the normalizer falls through to GENERAL).
func Parse(data []byte) (*Document, error) {
	var raw xmlReqIF
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, model.NewInputError("malformed ReqIF XML: %v", err)
	}

	doc := &Document{
		Header: Header{
			Identifier: raw.Header.Identifier,
			Title:      raw.Header.Title,
			Comment:    raw.Header.Comment,
		},
		SpecObjects:          []SpecObject{},
		SpecTypes:            []SpecType{},
		AttributeDefinitions: []AttributeDefinition{},
	}

	for _, st := range raw.Content.SpecTypes {
		defs := make([]AttributeDefinition, 0, len(st.AttrDefs))
		for _, ad := range st.AttrDefs {
			defs = append(defs, AttributeDefinition{
				Identifier: ad.Identifier,
				LongName:   ad.LongName,
				DataType:   "string",
			})
		}
		doc.SpecTypes = append(doc.SpecTypes, SpecType{
			Identifier:           st.Identifier,
			LongName:             st.LongName,
			AttributeDefinitions: defs,
		})
		doc.AttributeDefinitions = append(doc.AttributeDefinitions, defs...)
	}

	for _, so := range raw.Content.SpecObjects {
		attrs := make([]AttributeValue, 0, len(so.Values))
		for _, v := range so.Values {
			value := v.ValueElem
			if value == "" {
				value = v.ValueAttr
			}
			attrs = append(attrs, AttributeValue{
				DefinitionRef: v.DefinitionRef,
				Value:         value,
			})
		}
		doc.SpecObjects = append(doc.SpecObjects, SpecObject{
			Identifier:  so.Identifier,
			SpecTypeRef: so.TypeRef,
			Attributes:  attrs,
		})
	}

	return doc, nil
}
