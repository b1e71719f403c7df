package twilio

import (
	"encoding/xml"
	"fmt"
)

// TwiML verb structs. Field order matters: verbs marshal in declaration
// order, and Twilio executes them top to bottom.

type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Say           *Say
}

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type Response struct {
	XMLName  xml.Name `xml:"Response"`
	Say      *Say
	Gather   *Gather
	Redirect *Redirect
	Hangup   *Hangup
}

// Render serializes a TwiML response with the XML declaration Twilio
// expects.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("twilio: render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// gatherSpeech builds the standard speak-then-listen response: say the
// text inside a speech Gather so the caller can barge in.
func gatherSpeech(text, voice, action string) *Response {
	return &Response{
		Gather: &Gather{
			Input:         "speech",
			Action:        action,
			Method:        "POST",
			SpeechTimeout: "auto",
			Say:           &Say{Voice: voice, Text: text},
		},
		Redirect: &Redirect{URL: action},
	}
}

// sayAndHangup builds the terminal response.
func sayAndHangup(text, voice string) *Response {
	return &Response{
		Say:    &Say{Voice: voice, Text: text},
		Hangup: &Hangup{},
	}
}
