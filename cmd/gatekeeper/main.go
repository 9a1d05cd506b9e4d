// Gatekeeper is an admission-control gateway for multi-tenant HTTP
// services. It authenticates callers by API key, admits or rejects each
// request against its tenant's and customer's token-bucket rate limits and
// forwards admitted requests to the protected upstream.
//
// Usage:
//
//	# Start the gateway
//	gatekeeper run --config gatekeeper.yaml
//
//	# Check a configuration file and its tenant profiles
//	gatekeeper validate --config gatekeeper.yaml
//
//	# Parse rule strings
//	gatekeeper rules check "100:1,3000:60"
//
//	# See how a rule treats a steady stream of requests
//	gatekeeper rules simulate "3:1" --requests 10 --interval 200ms
//
//	# Load tenant profiles into the SQLite store
//	gatekeeper profiles import profiles.yaml --db data/profiles.db
package main

func main() {
	Execute()
}
