package listener

import (
	"net"
	"strconv"
	"strings"
)

// combinedTimeLayout is the Apache %t layout.
const combinedTimeLayout = "02/Jan/2006:15:04:05 -0700"

// FormatCombined renders resp as an Apache combined log line followed by the
// processing time in milliseconds:
//
//	host - - [time] "METHOD target PROTO" status size "referer" "agent" ms
func FormatCombined(resp *Response) string {
	req := resp.Request

	var b strings.Builder
	b.Grow(128)

	b.WriteString(orDash(clientHost(req)))
	b.WriteString(" - - [")
	b.WriteString(req.ReceivedAt.Format(combinedTimeLayout))
	b.WriteString(`] "`)
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.Target)
	b.WriteByte(' ')
	b.WriteString(req.Proto)
	b.WriteString(`" `)
	b.WriteString(strconv.Itoa(resp.StatusCode))
	b.WriteByte(' ')
	if resp.ContentLength > 0 {
		b.WriteString(strconv.FormatInt(resp.ContentLength, 10))
	} else {
		b.WriteByte('-')
	}
	b.WriteString(` "`)
	b.WriteString(orDash(req.Referer()))
	b.WriteString(`" "`)
	b.WriteString(orDash(req.UserAgent()))
	b.WriteString(`" `)
	b.WriteString(strconv.FormatFloat(float64(resp.Duration.Microseconds())/1000, 'f', 3, 64))

	return b.String()
}

func clientHost(req *Request) string {
	if req.ClientIP.IsValid() {
		return req.ClientIP.String()
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
