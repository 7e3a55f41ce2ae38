package opencti

const findObservablesQuery = `
query FindObservables($search: String, $types: [String!], $first: Int) {
  stixCyberObservables(search: $search, types: $types, first: $first) {
    edges {
      node {
        id
        standard_id
        entity_type
        observable_value
        ... on DomainName { value }
        ... on IPv4Addr { value }
        ... on IPv6Addr { value }
        ... on StixFile {
          name
          hashes { algorithm hash }
        }
        ... on Artifact {
          url
          hashes { algorithm hash }
        }
      }
    }
  }
}`

// createObservableMutation is filled with (argument name, input type).
const createObservableMutation = `
mutation CreateObservable($type: String!, $input: %[2]s!) {
  stixCyberObservableAdd(type: $type, %[1]s: $input) {
    id
    entity_type
    observable_value
  }
}`

const askEnrichmentMutation = `
mutation AskEnrichment($id: ID!, $connectorId: ID!) {
  stixCoreObjectEdit(id: $id) {
    askEnrichment(connectorId: $connectorId) {
      id
    }
  }
}`
