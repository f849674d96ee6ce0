// Package secret resolves endpoint credentials that live outside the
// configuration file.
//
// Configuration values may carry two kinds of indirection:
//   - ${VAR} references, expanded strictly (see ExpandEnvStrict)
//   - secret references of the form secretref:<provider>:<ref>, resolved
//     through a Provider (see Resolver)
//
// A reference can be the whole value or appear inline:
//
//	password: secretref:env:DBPEDIA_PASSWORD
//	token:    Bearer secretref:file:wikidata-token
//
// Two providers ship with the package. "env" reads an environment variable
// and "file" reads a file below a fixed directory, trimming the trailing
// newline that secret mounts usually carry.
package secret
