// Package sparql holds the data model shared by every layer that talks to
// SPARQL 1.1 endpoints: endpoint descriptions, bindings, query results,
// typed faults, and the decoders for the SPARQL 1.1 Query Results formats.
//
// # Results
//
// Parse decodes a complete payload (JSON, XML, CSV, TSV or N-Triples) into
// rows of Bindings. NewStream walks a JSON payload lazily, one row at a time,
// without buffering the body:
//
//	s, err := sparql.NewStream(sparql.FormatJSON, resp.Body)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	for {
//	    row, err := s.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    use(row["s"].Value)
//	}
//
// # Faults
//
// Every failure the execution layer observes is described by a *Fault
// carrying an ErrorKind. KindOf maps arbitrary errors (context deadlines,
// net.Error timeouts, TLS failures) onto the same kinds.
//
// # Query shape
//
// Analyze performs a lightweight, heuristic scan of a query string. It is
// not a SPARQL parser.
package sparql
