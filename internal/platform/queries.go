package platform

import "github.com/pixel-backend/internal/types"

// Connection queries used by cursor-mode pulls. Field sets mirror what the
// app actually consumes downstream; pagination runs on GraphQL variables.
var connectionQueries = map[types.ResourceType]string{
	types.ResourceCustomers: `
query ($first: Int!, $after: String) {
  customers(first: $first, after: $after) {
    edges {
      node {
        id
        firstName
        lastName
        email
        createdAt
        tags
        note
        state
        amountSpent {
          amount
          currencyCode
        }
      }
      cursor
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`,
	types.ResourceProducts: `
query ($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    edges {
      node {
        id
        title
        handle
        description
        productType
        vendor
        tags
        status
        createdAt
        priceRangeV2 {
          maxVariantPrice { amount }
          minVariantPrice { amount }
        }
        variants(first: 10) {
          edges {
            node {
              id
              title
              price
              inventoryQuantity
            }
          }
        }
      }
      cursor
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`,
	types.ResourceOrders: `
query ($first: Int!, $after: String) {
  orders(first: $first, after: $after) {
    edges {
      node {
        id
        name
        email
        createdAt
        displayFinancialStatus
        totalDiscountsSet { shopMoney { amount currencyCode } }
        totalPriceSet { shopMoney { amount currencyCode } }
        lineItems(first: 5) {
          edges {
            node {
              title
              quantity
              discountedTotalSet { shopMoney { amount currencyCode } }
              originalTotalSet { shopMoney { amount currencyCode } }
            }
          }
        }
        customer {
          firstName
          lastName
          email
        }
      }
      cursor
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`,
}

// Bulk-mode queries: same resources without pagination arguments, executed by
// the platform's bulk operation machinery.
var bulkQueries = map[types.ResourceType]string{
	types.ResourceCustomers: `
{
  customers {
    edges {
      node {
        id
        firstName
        lastName
        email
        createdAt
        tags
        note
        state
        amountSpent { amount currencyCode }
      }
    }
  }
}`,
	types.ResourceProducts: `
{
  products {
    edges {
      node {
        id
        title
        handle
        description
        productType
        vendor
        tags
        status
        createdAt
      }
    }
  }
}`,
	types.ResourceOrders: `
{
  orders {
    edges {
      node {
        id
        name
        email
        createdAt
        displayFinancialStatus
        totalPriceSet { shopMoney { amount currencyCode } }
      }
    }
  }
}`,
}

const bulkRunMutation = `
mutation ($query: String!) {
  bulkOperationRunQuery(query: $query) {
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

const bulkStatusQuery = `
query ($id: ID!) {
  node(id: $id) {
    ... on BulkOperation {
      id
      status
      errorCode
      objectCount
      url
    }
  }
}`

const listWebhookSubscriptionsQuery = `
query {
  webhookSubscriptions(first: 100) {
    edges {
      node {
        id
        topic
        endpoint {
          __typename
          ... on WebhookHttpEndpoint {
            callbackUrl
          }
        }
      }
    }
  }
}`

const createWebhookSubscriptionMutation = `
mutation ($topic: WebhookSubscriptionTopic!, $webhookSubscription: WebhookSubscriptionInput!) {
  webhookSubscriptionCreate(topic: $topic, webhookSubscription: $webhookSubscription) {
    webhookSubscription {
      id
      topic
    }
    userErrors {
      field
      message
    }
  }
}`

const createWebPixelMutation = `
mutation ($webPixel: WebPixelInput!) {
  webPixelCreate(webPixel: $webPixel) {
    webPixel {
      id
      settings
    }
    userErrors {
      field
      message
    }
  }
}`

const updateWebPixelMutation = `
mutation ($id: ID!, $webPixel: WebPixelInput!) {
  webPixelUpdate(id: $id, webPixel: $webPixel) {
    webPixel {
      id
      settings
    }
    userErrors {
      field
      message
    }
  }
}`
