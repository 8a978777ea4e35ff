package driver

import "strings"

// GraphQL documents sent to the Admin API. Placeholders get substituted
// per stream before the request goes out.
const (
	queryNamePlaceholder      = "__query_name__"
	selectedFieldsPlaceholder = "__selected_fields__"
	additionalArgsPlaceholder = "__additional_args__"
	filtersPlaceholder        = "__filters__"
)

const incrementalQuery = `query tapShopify($first: Int, $after: String, $filter: String) {
    __query_name__(first: $first, after: $after, query: $filter__additional_args__) {
        edges {
            cursor
            node {
                __selected_fields__
            }
        },
        pageInfo {
            hasNextPage
        }
    }
}`

const bulkQuery = `mutation tapShopify {
  bulkOperationRunQuery(
    query: """
      {
        __query_name____filters__ {
          edges {
            node {
              __selected_fields__
            }
          }
        }
      }
    """
  ) {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}`

const bulkStatusQuery = `query {
  currentBulkOperation {
    id
    status
    errorCode
    createdAt
    completedAt
    objectCount
    fileSize
    url
    partialDataUrl
  }
}`

const schemaQuery = `query IntrospectionQuery {
  __schema {
    queryType {
      name
    }
    types {
      ...FullType
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args {
      ...InputValue
    }
    type {
      ...TypeRef
    }
    isDeprecated
    deprecationReason
  }
  inputFields {
    ...InputValue
  }
  interfaces {
    ...TypeRef
  }
  enumValues(includeDeprecated: true) {
    name
    description
    isDeprecated
    deprecationReason
  }
  possibleTypes {
    ...TypeRef
  }
}

fragment InputValue on __InputValue {
  name
  description
  type {
    ...TypeRef
  }
  defaultValue
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}`

// queriesQuery lists the root query fields along with enough type depth to
// reach the element type behind each connection's "nodes" field.
const queriesQuery = `query IntrospectionQuery {
  __schema {
    queryType {
      fields(includeDeprecated: true) {
        name
        args {
          name
        }
        type {
          kind
          name
          ofType {
            kind
            name
            fields {
              name
              type {
                kind
                name
                ofType {
                  kind
                  name
                  ofType {
                    kind
                    name
                    ofType {
                      kind
                      name
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

func renderQuery(template, queryName, selectedFields string, additionalArgs []string) string {
	query := strings.ReplaceAll(template, queryNamePlaceholder, queryName)
	query = strings.ReplaceAll(query, selectedFieldsPlaceholder, selectedFields)

	args := ""
	if len(additionalArgs) > 0 {
		args = ", " + strings.Join(additionalArgs, ", ")
	}
	return strings.ReplaceAll(query, additionalArgsPlaceholder, args)
}

func renderBulkQuery(queryName, selectedFields string, filters []string) string {
	query := strings.ReplaceAll(bulkQuery, queryNamePlaceholder, queryName)
	query = strings.ReplaceAll(query, selectedFieldsPlaceholder, selectedFields)

	rendered := ""
	if len(filters) > 0 {
		rendered = "(" + strings.Join(filters, ", ") + ")"
	}
	return strings.ReplaceAll(query, filtersPlaceholder, rendered)
}
