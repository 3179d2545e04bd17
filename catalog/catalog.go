// Copyright 2017 Kumina, https://kumina.nl/
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog holds the prioritized regex rule table used to
// classify Postfix/Amavis/DKIM-milter syslog lines.
//
// Rules are declared in a fixed, load-bearing order: the first rule
// whose anchored pattern matches a line wins, and several rules exist
// only to pre-empt a more general rule that would otherwise also
// match (see the "NOTE WELL" comments below, carried over from the
// original rule table).
package catalog

import "regexp"

// Router names the dispatch class a rule belongs to.
type Router string

const (
	RouterPostfix    Router = "POSTFIX"
	RouterDKIMMilter Router = "DKIMMILTER"
	RouterAmavisd    Router = "AMAVISD"
	RouterQueueID    Router = "queueid"
	RouterPID        Router = "PID"
)

// Rule is one entry of the catalog: a compiled, line-anchored pattern
// and the router class that decides which tracker consumes a match.
// Captured fields are read from the pattern's own named groups
// (classify.Classify uses regexp.SubexpNames, not a parallel slice),
// so catalog never has to keep a field list in sync with group count.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Router  Router
}

// Fragments shared across rules, named the way the source catalog's
// comments name the fields they capture. Several are functions rather
// than constants because the same shape (an FQDN-or-"unknown" paired
// with an IPv4-or-"unknown") recurs with a different field-name prefix
// depending on whether it describes the connecting client, the
// delivering relay, or a generic remote peer.
const (
	ipv4Pattern = `[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}`
	portPattern = `[0-9]{1,5}`
	fqdnPattern = `[a-zA-Z0-9._-]+`
)

func dateFrag() string     { return `(?P<timestamp>[a-zA-Z]{3}[ ]{1,2}[0-9]{1,2} [0-9]{2}:[0-9]{2}:[0-9]{2})` }
func hostnameFrag() string { return `(?P<hostname>[a-zA-Z0-9_-]+)` }
func pidFrag() string      { return `\[(?P<PID>[0-9]+)\]` }
func queueid(name string) string { return `(?P<` + name + `>[A-Z0-9]{7,12})` }
func heloFrag() string     { return `<(?P<heloid>[^>]*)>` }

// fqdnOrUnknownAndIPv4 matches "host[ip]" or "unknown[unknown]",
// capturing the host and ip parts (when present) under prefix+"hostname"
// and prefix+"hostip".
func fqdnOrUnknownAndIPv4(prefix string) string {
	return `(?:unknown|(?P<` + prefix + `hostname>` + fqdnPattern + `))\[(?:(?P<` + prefix + `hostip>` + ipv4Pattern + `)|unknown)\]`
}

// fqdnOrUnknownAndIPv4AndPort additionally captures a trailing
// ":port" under prefix+"port".
func fqdnOrUnknownAndIPv4AndPort(prefix string) string {
	return fqdnOrUnknownAndIPv4(prefix) + `:(?P<` + prefix + `port>` + portPattern + `)`
}

// relay matches relay=none, relay=local, or relay=host[ip]:port,
// capturing the host/ip/port under prefix+"hostname"/"hostip"/"port"
// when it's neither none nor local.
func relay(prefix string) string {
	return `relay=(?:none|local|` + fqdnOrUnknownAndIPv4AndPort(prefix) + `)`
}

const delayFrag = `delay=(?P<delay>[0-9.]+)`
const delaysFrag = `delays=(?P<delay1>[0-9.]+)/(?P<delay2>[0-9.]+)/(?P<delay3>[0-9.]+)/(?P<delay4>[0-9.]+)`
const dsnNamedFrag = `dsn=(?P<dsn>[0-9]\.[0-9]\.[0-9])`

func mustRule(name string, pattern string, router Router) Rule {
	return Rule{
		Name:    name,
		Pattern: regexp.MustCompile("^" + pattern + "$"),
		Router:  router,
	}
}

// Build returns the catalog in its declared, load-bearing order.
// Callers must never re-sort it.
func Build() []Rule {
	return []Rule{
		mustRule("smtpd_sasl_login",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": "+queueid("queueid")+": client="+fqdnOrUnknownAndIPv4("client")+", sasl_method=(?P<sasl_method>PLAIN|LOGIN), sasl_username=(?P<username>[a-z0-9A-Z.]+)",
			RouterQueueID),

		mustRule("smtpd_sasl_login_failure",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: "+fqdnOrUnknownAndIPv4("client")+": SASL (?P<method>LOGIN|PLAIN) authentication failed: authentication failure",
			RouterPID),

		mustRule("smtpd_sasl_password_failure",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: SASL authentication failure: Password verification failed",
			RouterPID),

		mustRule("smtpd_tls_established",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": Anonymous TLS connection established from "+fqdnOrUnknownAndIPv4("client")+": (?P<tlscipher>.*)",
			RouterPID),

		mustRule("smtpd_ssl_accept_error",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": SSL_accept error from "+fqdnOrUnknownAndIPv4("client")+": (?P<sslerror>.*)",
			RouterPID),

		mustRule("smtpd_tls_library_error",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: TLS library problem: (?P<tlserror>.+)",
			RouterPID),

		mustRule("smtpd_command_error",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: non-SMTP command from "+fqdnOrUnknownAndIPv4("client")+": (?P<error>.*)",
			RouterPID),

		mustRule("smtpd_client_connect",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": connect from "+fqdnOrUnknownAndIPv4("client"),
			RouterPostfix),

		// Must precede smtpd_amavis_10026_queueid: this is the NOQUEUE
		// (pre-queueid) form of the same filter message.
		mustRule("smtpd_amavis_10026",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: filter: (?P<smtpcommand>RCPT|VRFY) from "+fqdnOrUnknownAndIPv4("client")+": <[^>]*>: Sender address triggers FILTER smtp-amavis:\\[127\\.0\\.0\\.1\\]:10026; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterPostfix),

		mustRule("smtpd_amavis_10026_queueid",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": "+queueid("queueid")+": filter: RCPT from "+fqdnOrUnknownAndIPv4("client")+": <[^>]*>: Sender address triggers FILTER smtp-amavis:\\[127\\.0\\.0\\.1\\]:10026; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterQueueID),

		mustRule("smtpd_amavis_10024",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: filter: (?P<smtpcommand>RCPT|VRFY) from "+fqdnOrUnknownAndIPv4("client")+": <[^>]*>: Sender address triggers FILTER smtp-amavis:\\[127\\.0\\.0\\.1\\]:10024; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterPID),

		mustRule("smtpd_amavis_10024_queueid",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": "+queueid("queueid")+": filter: RCPT from "+fqdnOrUnknownAndIPv4("client")+": <[^>]*>: Sender address triggers FILTER smtp-amavis:\\[127\\.0\\.0\\.1\\]:10024; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterQueueID),

		mustRule("smtpd_queueid_identified",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": "+queueid("queueid")+": client="+fqdnOrUnknownAndIPv4("client"),
			RouterPostfix),

		mustRule("smtpd_invalid_syntax",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: Illegal address syntax from "+fqdnOrUnknownAndIPv4("client")+" in (?P<command>RCPT|MAIL) command: <(?P<to>[^>]*)>",
			RouterPID),

		mustRule("smtpd_improper_pipelining",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": improper command pipelining after (?P<command>QUIT|DATA) from "+fqdnOrUnknownAndIPv4("client")+":(?P<error>.*)",
			RouterPID),

		mustRule("smtpd_address_rejected",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: reject: RCPT from "+fqdnOrUnknownAndIPv4("client")+": 550 5\\.1\\.1 <[^>]*>: Recipient address rejected: [a-zA-Z0-9._-]+; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterPID),

		mustRule("smtpd_relay_denied",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: reject: (?P<smtpcommand>VRFY|RCPT) from "+fqdnOrUnknownAndIPv4("client")+": 554 5\\.7\\.1 <[^>]*>: Relay access denied; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterPID),

		// Degenerate form of the relay-denied rejection, with no from=
		// field at all. Must stay distinct from smtpd_relay_denied, not
		// merged into it with an optional group, since the diagnostic
		// tail differs ("proto=ESMTP" with nothing after it).
		mustRule("smtpd_relay_denied_strange",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: reject: (?P<smtpcommand>VRFY|RCPT) from "+fqdnOrUnknownAndIPv4("client")+": 554 5\\.7\\.1 <[^>]*>: Relay access denied; to=<(?P<to>[^>]*)> proto=E?SMTP",
			RouterPID),

		mustRule("smtpd_address_rejected_fqdn",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: reject: RCPT from "+fqdnOrUnknownAndIPv4("client")+": 504 5\\.5\\.2 <[^>]*>: Recipient address rejected: need fully-qualified address; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterPID),

		// NOTE WELL: must follow smtpd_address_rejected: "NOQUEUE" itself
		// fits the queue-id pattern, so the NOQUEUE form is tried first.
		mustRule("smtpd_address_rejected_queueid",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": "+queueid("queueid")+": reject: RCPT from "+fqdnOrUnknownAndIPv4("client")+": 550 5\\.1\\.1 <[^>]*>: Recipient address rejected: [a-zA-Z0-9._-]+; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterQueueID),

		mustRule("smtpd_address_rejected_fqdn_queueid",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": "+queueid("queueid")+": reject: RCPT from "+fqdnOrUnknownAndIPv4("client")+": 504 5\\.5\\.2 <[^>]*>: Recipient address rejected: need fully-qualified address; from=<(?P<from>[^>]*)> to=<(?P<to>[^>]*)> proto=E?SMTP helo="+heloFrag(),
			RouterQueueID),

		mustRule("dns_warning",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: hostname (?P<clienthostname>[a-zA-Z0-9._-]+) does not resolve to address (?P<clienthostip>"+ipv4Pattern+")(: (?P<errormessage>.+))?",
			RouterPID),

		mustRule("numeric_hostname_warning",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: numeric hostname: (?P<clienthostip>"+ipv4Pattern+")",
			RouterPID),

		mustRule("messageid_identified",
			dateFrag()+" "+hostnameFrag()+" postfix/cleanup"+pidFrag()+": "+queueid("queueid")+": (resent-)?message-id=(?P<messageid>[^ ]+)",
			RouterQueueID),

		mustRule("from_identified",
			dateFrag()+" "+hostnameFrag()+" postfix/qmgr"+pidFrag()+": "+queueid("queueid")+": from=<(?P<from>[^>]*)>, size=(?P<size>[0-9]+), nrcpt=(?P<nrcpt>[0-9]+) \\(queue active\\)",
			RouterQueueID),

		mustRule("smtpd_client_disconnect",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": disconnect from "+fqdnOrUnknownAndIPv4("client"),
			RouterPostfix),

		mustRule("dkimmilter_client_connect",
			dateFrag()+" "+hostnameFrag()+" postfix/dkimmilter/smtpd"+pidFrag()+": connect from "+fqdnOrUnknownAndIPv4("client"),
			RouterDKIMMilter),

		mustRule("dkimmilter_queueid_identified",
			dateFrag()+" "+hostnameFrag()+" postfix/dkimmilter/smtpd"+pidFrag()+": "+queueid("queueid")+": client="+fqdnOrUnknownAndIPv4("client"),
			RouterDKIMMilter),

		mustRule("dkimmilter_client_disconnect",
			dateFrag()+" "+hostnameFrag()+" postfix/dkimmilter/smtpd"+pidFrag()+": disconnect from "+fqdnOrUnknownAndIPv4("client"),
			RouterDKIMMilter),

		mustRule("smtpd_milter_warning",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": warning: milter inet:(?P<hostip>"+ipv4Pattern+"):(?P<hostport>"+portPattern+"): (?P<message>.+)",
			RouterPID),

		mustRule("cleanup_milter_warning",
			dateFrag()+" "+hostnameFrag()+" postfix/cleanup"+pidFrag()+": warning: milter inet:(?P<hostip>"+ipv4Pattern+"):(?P<hostport>"+portPattern+"): (?P<message>.+)",
			RouterPID),

		mustRule("cleanup_milter_reject",
			dateFrag()+" "+hostnameFrag()+" postfix/cleanup"+pidFrag()+": "+queueid("queueid")+": milter-reject: END-OF-MESSAGE from "+fqdnOrUnknownAndIPv4("client")+": (?P<errormsg>.+)",
			RouterQueueID),

		mustRule("smtpd_milter_reject",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": NOQUEUE: milter-reject: CONNECT from "+fqdnOrUnknownAndIPv4("client")+": (?P<errormsg>.+)",
			RouterPID),

		// NOTE WELL: must precede message_queued and message_queued_all,
		// both more general "status=sent" forms that would also match a
		// spam-discard line.
		mustRule("message_spam_discarded",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>(?:, orig_to=<(?P<orig_to>[^>]*)>)?, "+relay("relay")+", "+delayFrag+", "+delaysFrag+", "+dsnNamedFrag+", status=sent \\(250 2\\.7\\.0 Ok, discarded, id=(?P<spamid>[0-9-]+) - spam\\)",
			RouterQueueID),

		// NOTE WELL: must precede message_queued_all, the more general
		// "status=sent" form that would also match this line.
		mustRule("message_queued",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>(?:, orig_to=<(?P<orig_to>[^>]*)>)?, "+relay("relay")+"(?:, conn_use=(?P<conn_use>[0-9.]+))?, "+delayFrag+", "+delaysFrag+", dsn=2\\.0\\.0, status=sent \\(.+ queued as "+queueid("newqueueid")+"\\)",
			RouterQueueID),

		mustRule("message_queued_all",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>(?:, orig_to=<(?P<orig_to>[^>]*)>)?, "+relay("relay")+", "+delayFrag+", "+delaysFrag+", dsn=2\\.[0-7]\\.0, status=sent \\((?P<statusmsg>.+)\\)",
			RouterQueueID),

		mustRule("message_bounced_smtp",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>, "+relay("relay")+", "+delayFrag+", "+delaysFrag+", "+dsnNamedFrag+", status=bounced \\((?P<statusmsg>.+)\\)",
			RouterQueueID),

		mustRule("message_bounced_error",
			dateFrag()+" "+hostnameFrag()+" postfix/error"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>, "+relay("relay")+", "+delayFrag+", "+delaysFrag+", "+dsnNamedFrag+", status=bounced \\((?P<statusmsg>.+)\\)",
			RouterQueueID),

		mustRule("message_deferred_smtp",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>, "+relay("relay")+"(?:, conn_use=(?P<conn_use>[0-9.]+))?, "+delayFrag+", "+delaysFrag+", "+dsnNamedFrag+", status=deferred \\((?P<errormsg>.+)\\)",
			RouterQueueID),

		mustRule("message_deferred_error",
			dateFrag()+" "+hostnameFrag()+" postfix/error"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>, "+relay("relay")+", "+delayFrag+", "+delaysFrag+", "+dsnNamedFrag+", status=deferred \\((?P<statusmsg>.+)\\)",
			RouterQueueID),

		mustRule("smtp_unavailable",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": host "+fqdnOrUnknownAndIPv4("relay")+" said: (?P<errormsg>.+)",
			RouterQueueID),

		mustRule("message_deferred_spam",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": host "+fqdnOrUnknownAndIPv4("relay")+" refused to talk to me: (?P<errormsg>.+)",
			RouterQueueID),

		mustRule("message_removed",
			dateFrag()+" "+hostnameFrag()+" postfix/qmgr"+pidFrag()+": "+queueid("queueid")+": removed",
			RouterQueueID),

		mustRule("message_expired",
			dateFrag()+" "+hostnameFrag()+" postfix/qmgr"+pidFrag()+": "+queueid("queueid")+": from=<(?P<from>[^>]*)>, status=expired, returned to sender",
			RouterQueueID),

		mustRule("amavisd_client_connect",
			dateFrag()+" "+hostnameFrag()+" postfix/amavisd/smtpd"+pidFrag()+": connect from "+fqdnOrUnknownAndIPv4("client"),
			RouterAmavisd),

		mustRule("amavisd_queueid_identified",
			dateFrag()+" "+hostnameFrag()+" postfix/amavisd/smtpd"+pidFrag()+": "+queueid("queueid")+": client="+fqdnOrUnknownAndIPv4("client"),
			RouterAmavisd),

		mustRule("amavisd_client_disconnect",
			dateFrag()+" "+hostnameFrag()+" postfix/amavisd/smtpd"+pidFrag()+": disconnect from "+fqdnOrUnknownAndIPv4("client"),
			RouterAmavisd),

		// TODO: the new queue-id captured here is never joined back onto
		// the MailMessage it originated from; see mailmsg's
		// ReferencedQueueIDs.
		mustRule("delivery_status_error",
			dateFrag()+" "+hostnameFrag()+" postfix/bounce"+pidFrag()+": "+queueid("queueid")+": sender non-delivery notification: "+queueid("newqueueid"),
			RouterQueueID),

		mustRule("delivery_status_success",
			dateFrag()+" "+hostnameFrag()+" postfix/bounce"+pidFrag()+": "+queueid("queueid")+": sender delivery status notification: "+queueid("newqueueid"),
			RouterQueueID),

		mustRule("local_delivery",
			dateFrag()+" "+hostnameFrag()+" postfix/lmtp"+pidFrag()+": "+queueid("queueid")+": to=<(?P<to>[^>]*)>(?:, orig_to=<(?P<orig_to>[^>]*)>)?, "+relay("relay")+"(?:, conn_use=(?P<conn_use>[0-9.]+))?, "+delayFrag+", "+delaysFrag+", dsn=2\\.1\\.5, status=sent \\(250 2\\.1\\.5 Delivery OK\\)",
			RouterQueueID),

		mustRule("pickup",
			dateFrag()+" "+hostnameFrag()+" postfix/pickup"+pidFrag()+": "+queueid("queueid")+": uid=(?P<uid>[0-9]+) from=<(?P<from>[^>]*)>",
			RouterQueueID),

		mustRule("connect_error_no_route",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": connect to "+fqdnOrUnknownAndIPv4AndPort("remote")+": No route to host",
			RouterPID),

		mustRule("connect_error_connection_refused",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": connect to "+fqdnOrUnknownAndIPv4AndPort("remote")+": Connection refused",
			RouterPID),

		mustRule("connect_error_connection_timed_out",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": connect to "+fqdnOrUnknownAndIPv4AndPort("remote")+": Connection timed out",
			RouterPID),

		mustRule("anvil",
			dateFrag()+" "+hostnameFrag()+" postfix/anvil"+pidFrag()+": .+",
			RouterPID),

		mustRule("scache",
			dateFrag()+" "+hostnameFrag()+" postfix/scache"+pidFrag()+": .+",
			RouterPID),

		mustRule("smtpd_connection_error",
			dateFrag()+" "+hostnameFrag()+" postfix/smtpd"+pidFrag()+": (?P<error>too many errors|lost connection|timeout) after (?P<state>NOOP|END-OF-MESSAGE|UNKNOWN|MAIL|EHLO|STARTTLS|RSET|CONNECT|AUTH|HELO|RCPT|DATA|DATA \\([0-9]+ bytes\\)) from "+fqdnOrUnknownAndIPv4("remote"),
			RouterPID),

		mustRule("amavisd_connection_error",
			dateFrag()+" "+hostnameFrag()+" postfix/amavisd/smtpd"+pidFrag()+": (?P<error>lost connection|timeout) after (?P<state>END-OF-MESSAGE|UNKNOWN|MAIL|EHLO|STARTTLS|RSET|CONNECT|AUTH|HELO|RCPT|DATA|DATA \\([0-9]+ bytes\\)) from "+fqdnOrUnknownAndIPv4("remote"),
			RouterPID),

		mustRule("dkimmilter_connection_error",
			dateFrag()+" "+hostnameFrag()+" postfix/dkimmilter/smtpd"+pidFrag()+": (?P<error>lost connection|timeout) after (?P<state>END-OF-MESSAGE|UNKNOWN|MAIL|EHLO|STARTTLS|RSET|CONNECT|AUTH|HELO|RCPT|DATA|DATA \\([0-9]+ bytes\\)) from "+fqdnOrUnknownAndIPv4("remote"),
			RouterPID),

		mustRule("smtp_pix_workarounds",
			dateFrag()+" "+hostnameFrag()+" postfix/smtp"+pidFrag()+": "+queueid("queueid")+": enabling PIX workarounds: disable_esmtp delay_dotcrlf for "+fqdnOrUnknownAndIPv4AndPort("client"),
			RouterQueueID),
	}
}
