// Package discovery finds greeac bridges on the local network over mDNS.
//
// A running bridge registers itself as a "_greeac._tcp" service with TXT
// records carrying its version, whether the API uses TLS, and the serial
// port it drives:
//
//	adv, err := discovery.Advertise(discovery.Advertisement{
//	    Instance: "living-room",
//	    Port:     8080,
//	    Version:  version.Version,
//	})
//	defer adv.Shutdown()
//
// Clients browse for bridges with a Scanner:
//
//	bridges, err := discovery.NewScanner().Scan(ctx)
//	for _, b := range bridges {
//	    fmt.Println(b.Instance, b.WebSocketURL())
//	}
//
// Scan waits for the full timeout; WaitFor returns as soon as the named
// instance answers.
package discovery
