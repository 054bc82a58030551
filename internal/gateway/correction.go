package gateway

import "encoding/xml"

// CorrectionNS is the message-correction namespace receivers key on.
const CorrectionNS = "urn:xmpp:message-correct:0"

type replaceElem struct {
	XMLName xml.Name `xml:"replace"`
	XMLNS   string   `xml:"xmlns,attr"`
	ID      string   `xml:"id,attr"`
}

// CorrectionElement renders the replace element that marks a stanza as
// correcting the message with the given id.
func CorrectionElement(msgID string) string {
	out, err := xml.Marshal(replaceElem{XMLNS: CorrectionNS, ID: msgID})
	if err != nil {
		return ""
	}
	return string(out)
}
