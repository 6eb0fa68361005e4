// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package email

import (
	"bytes"
	"net/mail"
	"strconv"
	"text/template"

	"github.com/absmach/certkeeper/pkg/errors"
	"gopkg.in/gomail.v2"
)

var (
	errParseTemplate = errors.New("parse e-mail template failed")
	errExecTemplate  = errors.New("execute e-mail template failed")
	errSendMail      = errors.New("sending e-mail failed")
)

// defTemplate is used when no template file is configured.
const defTemplate = `To: {{range $index, $v := .To}}{{if $index}},{{end}}{{$v}}{{end}}
From: {{.From}}
Subject: {{.Subject}}
{{.Header}}
{{.Content}}
{{.Footer}}
`

type email struct {
	To      []string
	From    string
	Subject string
	Header  string
	Content string
	Footer  string
}

// Config email agent configuration.
type Config struct {
	Host        string `env:"EMAIL_HOST"         envDefault:"localhost"`
	Port        string `env:"EMAIL_PORT"         envDefault:"25"`
	Username    string `env:"EMAIL_USERNAME"     envDefault:""`
	Password    string `env:"EMAIL_PASSWORD"     envDefault:""`
	FromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:""`
	FromName    string `env:"EMAIL_FROM_NAME"    envDefault:""`
	Template    string `env:"EMAIL_TEMPLATE"     envDefault:""`
}

// Agent for mailing.
type Agent struct {
	conf *Config
	tmpl *template.Template
	dial *gomail.Dialer
}

// New creates new email agent.
func New(c *Config) (*Agent, error) {
	a := &Agent{}
	a.conf = c
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return a, err
	}
	d := gomail.NewDialer(c.Host, port, c.Username, c.Password)
	a.dial = d

	var tmpl *template.Template
	if c.Template != "" {
		tmpl, err = template.ParseFiles(c.Template)
	} else {
		tmpl, err = template.New("email").Parse(defTemplate)
	}
	if err != nil {
		return a, errors.Wrap(errParseTemplate, err)
	}
	a.tmpl = tmpl
	return a, nil
}

// Send sends e-mail.
func (a *Agent) Send(to []string, from, subject, header, content, footer string) error {
	buff := new(bytes.Buffer)
	e := email{
		To:      to,
		From:    from,
		Subject: subject,
		Header:  header,
		Content: content,
		Footer:  footer,
	}
	if from == "" {
		from := mail.Address{Name: a.conf.FromName, Address: a.conf.FromAddress}
		e.From = from.String()
	}

	if err := a.tmpl.Execute(buff, e); err != nil {
		return errors.Wrap(errExecTemplate, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", buff.String())

	if err := a.dial.DialAndSend(m); err != nil {
		return errors.Wrap(errSendMail, err)
	}

	return nil
}
